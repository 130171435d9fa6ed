package domain

import "strings"

// Customer 客戶，建立後除了時間戳外不可變
type Customer struct {
	Record
	Name string `json:"name"`
}

// NewCustomer 建立客戶 (尚未寫入儲存層，ID 為 0)
func NewCustomer(name string) (*Customer, error) {
	c := &Customer{Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
