package catalog

import (
	"github.com/shopspring/decimal"

	"webshop/internal/model"
)

// DefaultCatalog is the fixed list the product store is seeded with at start.
// Ids are assigned on insert, 1..8 in this order.
func DefaultCatalog() []model.Product {
	p := func(name, desc, price, image string, stock int) model.Product {
		return model.Product{
			Name:        name,
			Description: desc,
			Price:       decimal.RequireFromString(price),
			ImageURL:    image,
			Stock:       stock,
		}
	}
	return []model.Product{
		p("Laptop", "High-performance laptop for professionals", "12999.99", "https://example.com/laptop.jpg", 15),
		p("Smartphone", "Latest smartphone with advanced features", "7999.99", "https://example.com/smartphone.jpg", 25),
		p("Headphones", "Wireless noise-cancelling headphones", "1999.99", "https://example.com/headphones.jpg", 40),
		p("Keyboard", "Mechanical keyboard for gaming and typing", "899.99", "https://example.com/keyboard.jpg", 30),
		p("Mouse", "Ergonomic wireless mouse", "499.99", "https://example.com/mouse.jpg", 50),
		p("Monitor", "27-inch 4K display monitor", "3499.99", "https://example.com/monitor.jpg", 20),
		p("Webcam", "HD webcam for video conferencing", "799.99", "https://example.com/webcam.jpg", 35),
		p("External SSD", "1TB portable external SSD", "1299.99", "https://example.com/ssd.jpg", 45),
	}
}
