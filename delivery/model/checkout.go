package model

import (
	"encoding/json"

	"storefront/cart"
	"storefront/checkout"
)

type (
	AddItemRequest struct {
		ProductID cart.ProductID  `json:"id"`
		Product   json.RawMessage `json:"item,omitempty"`
	}

	CartResponse struct {
		Items     []cart.Line `json:"items"`
		ItemCount int         `json:"item_count"`
	}
)

type (
	SelectAddressRequest struct {
		AddressID string `json:"address_id"`
	}

	CheckoutResponse struct {
		Step            checkout.Step      `json:"step"`
		Addresses       []checkout.Address `json:"addresses"`
		SelectedAddress string             `json:"selected_address,omitempty"`
		Invoice         *checkout.Invoice  `json:"invoice,omitempty"`
	}

	PaymentResponse struct {
		PaymentURL string `json:"payment_url"`
	}
)
