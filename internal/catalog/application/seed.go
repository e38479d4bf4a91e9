package application

import (
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
)

func DemoCatalog() []domain.NewProduct {
	p := decimal.RequireFromString
	return []domain.NewProduct{
		{Name: "Hiking Boots", Description: "Durable boots for mountain hiking.", Price: p("129.99"), Stock: 25},
		{Name: "Mountain Bike", Description: "A sturdy mountain bike for rugged trails.", Price: p("499.99"), Stock: 10},
		{Name: "Laptop", Description: "15-inch, 16GB RAM", Price: p("1200.00"), Stock: 10},
		{Name: "Headphones", Description: "Noise-cancelling", Price: p("200.00"), Stock: 50},
		{Name: "Mouse", Description: "Wireless, ergonomic", Price: p("25.00"), Stock: 200},
		{Name: "Keyboard", Description: "Mechanical, backlit", Price: p("45.00"), Stock: 150},
		{Name: "Tent", Description: "4-person camping tent, waterproof.", Price: p("250.00"), Stock: 15},
		{Name: "Sleeping Bag", Description: "Insulated sleeping bag for winter camping.", Price: p("75.00"), Stock: 30},
		{Name: "Camping Stove", Description: "Portable stove for outdoor cooking.", Price: p("60.00"), Stock: 50},
		{Name: "Smartphone", Description: "Latest model with 128GB storage.", Price: p("800.00"), Stock: 20},
	}
}
