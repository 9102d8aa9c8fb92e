package email

import (
	"bytes"
	"html/template"

	"github.com/example/storefront/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Confirmation is the data rendered into the order confirmation mail.
type Confirmation struct {
	OrderID     string
	Customer    string
	Items       []order.OrderItem
	Subtotal    float64
	Discount    float64
	ShippingFee float64
	Tax         float64
	Total       float64
	Address     order.ShippingAddress
}

// NewConfirmation derives the mail data from a placed order.
func NewConfirmation(o order.Order) Confirmation {
	return Confirmation{
		OrderID:     o.ID,
		Customer:    o.ShippingAddress.FirstName,
		Items:       o.OrderItems,
		Subtotal:    o.ItemsTotal(),
		Discount:    o.Discount,
		ShippingFee: o.ShippingFee,
		Tax:         o.Tax,
		Total:       o.TotalAmount,
		Address:     o.ShippingAddress,
	}
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

var confirmationTemplate = template.Must(template.New("confirmation").
	Funcs(template.FuncMap{"money": money}).
	Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f2937; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Thank you for your order{{if .Customer}}, {{.Customer}}{{end}}!</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">We have received your order and will let you know when it ships.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">{{.OrderID}}</p>
		</div>

		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Product</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
			{{- range .Items}}
				<tr>
					<td style="padding: 12px; border-bottom: 1px solid #eee;">{{.ProductID}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">{{.Quantity}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .Price}}</td>
					<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">{{money .Subtotal}}</td>
				</tr>
			{{- end}}
			</tbody>
		</table>

		<table style="width: 100%; margin: 0 0 20px 0;">
			<tr><td>Subtotal</td><td style="text-align: right;">{{money .Subtotal}}</td></tr>
			{{- if .Discount}}
			<tr><td>Discount</td><td style="text-align: right;">-{{money .Discount}}</td></tr>
			{{- end}}
			<tr><td>Shipping</td><td style="text-align: right;">{{if .ShippingFee}}{{money .ShippingFee}}{{else}}Free{{end}}</td></tr>
			<tr><td>Tax</td><td style="text-align: right;">{{money .Tax}}</td></tr>
			<tr><td style="font-weight: bold;">Total</td><td style="text-align: right; font-size: 20px; font-weight: bold;">{{money .Total}}</td></tr>
		</table>

		<h2 style="font-size: 16px;">Shipping to</h2>
		<p style="margin: 0;">
			{{.Address.FirstName}} {{.Address.LastName}}<br>
			{{.Address.Address}}<br>
			{{.Address.City}}, {{.Address.State}} {{.Address.ZipCode}}<br>
			{{.Address.Country}}
		</p>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message. Contact support if you have any questions about your order.
		</p>
	</div>
</body>
</html>`))

// BuildOrderConfirmationBody renders the HTML body for an order confirmation.
func BuildOrderConfirmationBody(c Confirmation) (string, error) {
	var buf bytes.Buffer
	if err := confirmationTemplate.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}
