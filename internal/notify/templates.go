package notify

import (
	"fmt"
	"strings"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	"github.com/kanakkart/storefront-backend/pkg/enums"
	"github.com/kanakkart/storefront-backend/pkg/mailer"
)

func confirmationMessage(order *models.Order) mailer.Message {
	var lines strings.Builder
	for _, item := range order.Items {
		name := item.ProductTitle
		if item.Size != nil && *item.Size != "" {
			name = fmt.Sprintf("%s (%s)", name, *item.Size)
		}
		fmt.Fprintf(&lines, "  %d x %s — ₹%s\n", item.Quantity, name, item.UnitPrice.StringFixed(2))
	}

	payment := "Cash on Delivery"
	if order.PaymentMethod == enums.PaymentMethodPrepaid {
		payment = "Paid online"
	}

	plain := fmt.Sprintf(
		"Hi %s,\n\nYour order %s is confirmed.\n\n%s\nTotal: ₹%s\nPayment: %s\n\nWe'll email you again when it ships.\n",
		order.CustomerName, order.OrderNumber, lines.String(),
		order.TotalAmount.StringFixed(2), payment,
	)
	return mailer.Message{
		ToName:    order.CustomerName,
		ToAddress: order.CustomerEmail,
		Subject:   fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		PlainBody: plain,
		HTMLBody:  plainToHTML(plain),
	}
}

func statusMessage(order *models.Order) mailer.Message {
	subject := fmt.Sprintf("Order %s update", order.OrderNumber)
	var body string

	switch order.Status {
	case enums.OrderStatusShipped:
		tracking := ""
		if order.AWBCode != nil && *order.AWBCode != "" {
			courier := "our courier partner"
			if order.CourierName != nil && *order.CourierName != "" {
				courier = *order.CourierName
			}
			tracking = fmt.Sprintf("Track it with %s using AWB %s.\n", courier, *order.AWBCode)
		}
		subject = fmt.Sprintf("Order %s has shipped", order.OrderNumber)
		body = fmt.Sprintf("Hi %s,\n\nYour order %s is on its way. %s\n",
			order.CustomerName, order.OrderNumber, tracking)
	case enums.OrderStatusDelivered:
		subject = fmt.Sprintf("Order %s delivered", order.OrderNumber)
		body = fmt.Sprintf("Hi %s,\n\nYour order %s has been delivered. We hope you love it!\n",
			order.CustomerName, order.OrderNumber)
	case enums.OrderStatusCancelled:
		subject = fmt.Sprintf("Order %s cancelled", order.OrderNumber)
		body = fmt.Sprintf("Hi %s,\n\nYour order %s has been cancelled. If you paid online, the refund will follow separately.\n",
			order.CustomerName, order.OrderNumber)
	default:
		body = fmt.Sprintf("Hi %s,\n\nYour order %s is now %s.\n",
			order.CustomerName, order.OrderNumber, order.Status)
	}

	return mailer.Message{
		ToName:    order.CustomerName,
		ToAddress: order.CustomerEmail,
		Subject:   subject,
		PlainBody: body,
		HTMLBody:  plainToHTML(body),
	}
}

func plainToHTML(plain string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(plain)
	return "<p>" + strings.ReplaceAll(strings.TrimSpace(escaped), "\n", "<br>") + "</p>"
}
