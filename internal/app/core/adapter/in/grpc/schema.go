package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// 對應 api/ledger/v1/ledger.proto。訊息在執行期由 descriptor 建立 (dynamicpb)，
// wire format 與 protoc 產生的程式碼完全相同
const (
	ProtoFile   = "ledger/v1/ledger.proto"
	ServiceName = "ledger.v1.LedgerService"

	CreateCustomerMethod     = "/" + ServiceName + "/CreateCustomer"
	OpenAccountMethod        = "/" + ServiceName + "/OpenAccount"
	TransferFundsMethod      = "/" + ServiceName + "/TransferFunds"
	GetBalanceMethod         = "/" + ServiceName + "/GetBalance"
	GetTransferHistoryMethod = "/" + ServiceName + "/GetTransferHistory"
)

const protoPackage = "ledger.v1"

// 訊息描述 (init 時建立)
var (
	createCustomerRequestDesc     protoreflect.MessageDescriptor
	customerDesc                  protoreflect.MessageDescriptor
	openAccountRequestDesc        protoreflect.MessageDescriptor
	accountDesc                   protoreflect.MessageDescriptor
	transferFundsRequestDesc      protoreflect.MessageDescriptor
	transferDesc                  protoreflect.MessageDescriptor
	getBalanceRequestDesc         protoreflect.MessageDescriptor
	getBalanceResponseDesc        protoreflect.MessageDescriptor
	getTransferHistoryRequestDesc protoreflect.MessageDescriptor
	getTransferHistoryRespDesc    protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(ledgerFileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("ledger: invalid proto descriptor: %v", err))
	}
	// 註冊到全域 registry，server reflection 才查得到
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("ledger: register proto file: %v", err))
	}

	msgs := fd.Messages()
	createCustomerRequestDesc = msgs.ByName("CreateCustomerRequest")
	customerDesc = msgs.ByName("Customer")
	openAccountRequestDesc = msgs.ByName("OpenAccountRequest")
	accountDesc = msgs.ByName("Account")
	transferFundsRequestDesc = msgs.ByName("TransferFundsRequest")
	transferDesc = msgs.ByName("Transfer")
	getBalanceRequestDesc = msgs.ByName("GetBalanceRequest")
	getBalanceResponseDesc = msgs.ByName("GetBalanceResponse")
	getTransferHistoryRequestDesc = msgs.ByName("GetTransferHistoryRequest")
	getTransferHistoryRespDesc = msgs.ByName("GetTransferHistoryResponse")
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func repeatedMessage(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: proto.String("." + protoPackage + "." + typeName),
	}
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func method(name, input, output string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + protoPackage + "." + input),
		OutputType: proto.String("." + protoPackage + "." + output),
	}
}

func ledgerFileDescriptorProto() *descriptorpb.FileDescriptorProto {
	const (
		str   = descriptorpb.FieldDescriptorProto_TYPE_STRING
		i64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/JoeShih716/go-ledger-service/api/ledger/v1;ledgerv1"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("CreateCustomerRequest",
				scalar("name", 1, str)),
			message("Customer",
				scalar("id", 1, i64),
				scalar("name", 2, str),
				scalar("created_at", 3, str)),
			message("OpenAccountRequest",
				scalar("customer_id", 1, i64),
				scalar("initial_deposit", 2, str)),
			message("Account",
				scalar("id", 1, i64),
				scalar("customer_id", 2, i64),
				scalar("balance", 3, str),
				scalar("created_at", 4, str)),
			message("TransferFundsRequest",
				scalar("from_account_id", 1, i64),
				scalar("to_account_id", 2, i64),
				scalar("amount", 3, str),
				scalar("ref_id", 4, str)),
			message("Transfer",
				scalar("id", 1, i64),
				scalar("from_account_id", 2, i64),
				scalar("to_account_id", 3, i64),
				scalar("amount", 4, str),
				scalar("ref_id", 5, str),
				scalar("created_at", 6, str)),
			message("GetBalanceRequest",
				scalar("account_id", 1, i64)),
			message("GetBalanceResponse",
				scalar("account_id", 1, i64),
				scalar("balance", 2, str)),
			message("GetTransferHistoryRequest",
				scalar("account_id", 1, i64)),
			message("GetTransferHistoryResponse",
				repeatedMessage("transfers", 1, "Transfer")),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("LedgerService"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("CreateCustomer", "CreateCustomerRequest", "Customer"),
				method("OpenAccount", "OpenAccountRequest", "Account"),
				method("TransferFunds", "TransferFundsRequest", "Transfer"),
				method("GetBalance", "GetBalanceRequest", "GetBalanceResponse"),
				method("GetTransferHistory", "GetTransferHistoryRequest", "GetTransferHistoryResponse"),
			},
		}},
	}
}

// LedgerServer 是 LedgerService 的伺服器端介面
type LedgerServer interface {
	CreateCustomer(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	OpenAccount(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	TransferFunds(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	GetBalance(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
	GetTransferHistory(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)
}

type unaryCall func(srv LedgerServer, ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error)

// unaryHandler 產生與 protoc-gen-go-grpc 相同行為的 handler: 解碼 -> (攔截器) -> 呼叫
func unaryHandler(fullMethod string, input protoreflect.MessageDescriptor, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := dynamicpb.NewMessage(input)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*dynamicpb.Message))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// serviceDesc 在 init 之後才建立，因為 handler 需要訊息描述
func serviceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*LedgerServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "CreateCustomer",
				Handler:    unaryHandler(CreateCustomerMethod, createCustomerRequestDesc, LedgerServer.CreateCustomer),
			},
			{
				MethodName: "OpenAccount",
				Handler:    unaryHandler(OpenAccountMethod, openAccountRequestDesc, LedgerServer.OpenAccount),
			},
			{
				MethodName: "TransferFunds",
				Handler:    unaryHandler(TransferFundsMethod, transferFundsRequestDesc, LedgerServer.TransferFunds),
			},
			{
				MethodName: "GetBalance",
				Handler:    unaryHandler(GetBalanceMethod, getBalanceRequestDesc, LedgerServer.GetBalance),
			},
			{
				MethodName: "GetTransferHistory",
				Handler:    unaryHandler(GetTransferHistoryMethod, getTransferHistoryRequestDesc, LedgerServer.GetTransferHistory),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: ProtoFile,
	}
}

// RegisterLedgerServer 將 LedgerService 註冊到 gRPC server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(serviceDesc(), srv)
}
