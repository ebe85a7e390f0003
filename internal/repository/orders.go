package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vision-concierge/internal/domain"
)

// ErrOrderNotFound is returned when an order id resolves to nothing.
var ErrOrderNotFound = errors.New("repository: order not found")

// CreateOrder writes the order record and its listing copy in one
// transaction. Both puts are conditional on the id not existing, so a retried
// finalize with the same id fails instead of silently overwriting.
func (c *Client) CreateOrder(ctx context.Context, order domain.Order) error {
	if order.ID == "" {
		return errors.New("repository: CreateOrder: order id is required")
	}
	if !order.Status.Valid() {
		return fmt.Errorf("repository: CreateOrder: invalid status %q", order.Status)
	}

	notExists := aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                orderItem(order, orderPK(order.ID), skMeta),
					ConditionExpression: notExists,
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                orderItem(order, pkOrders, orderPK(order.ID)),
					ConditionExpression: notExists,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: CreateOrder: %w", err)
	}
	return nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("repository: GetOrder: order id is required")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: orderPK(orderID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: GetOrder: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Order{}, ErrOrderNotFound
	}

	order, err := itemToOrder(out.Item)
	if err != nil {
		return domain.Order{}, fmt.Errorf("repository: GetOrder unmarshal: %w", err)
	}
	return order, nil
}

// ListOrders queries the listing partition newest first and applies the
// filter in memory. The listing partition stays small enough for a single
// query page at this service's volume.
func (c *Client) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkOrders},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListOrders query: %w", err)
	}

	orders := make([]domain.Order, 0, len(out.Items))
	for _, item := range out.Items {
		order, err := itemToOrder(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListOrders unmarshal: %w", err)
		}
		if !matchesFilter(order, filter) {
			continue
		}
		orders = append(orders, order)
		if filter.Limit > 0 && len(orders) == filter.Limit {
			break
		}
	}
	return orders, nil
}

// UpdateOrderStatus transitions an order to a new status, updating the record
// and its listing copy together. Cancellation goes through here as well.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("repository: UpdateOrderStatus: order id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("repository: UpdateOrderStatus: invalid status %q", status)
	}

	update := aws.String("SET #status = :status, updatedAt = :now")
	exists := aws.String("attribute_exists(PK)")
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
		":now":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: orderPK(orderID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:          update,
					ConditionExpression:       exists,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: pkOrders},
						"SK": &types.AttributeValueMemberS{Value: orderPK(orderID)},
					},
					UpdateExpression:          update,
					ConditionExpression:       exists,
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: UpdateOrderStatus: %w", err)
	}
	return nil
}

func matchesFilter(order domain.Order, filter domain.OrderFilter) bool {
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PlanID != "" && order.PlanID != filter.PlanID {
		return false
	}
	if filter.UserID != "" && order.UserID != filter.UserID {
		return false
	}
	return true
}

func orderItem(order domain.Order, pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: pk},
		"SK":            &types.AttributeValueMemberS{Value: sk},
		"orderId":       &types.AttributeValueMemberS{Value: order.ID},
		"userId":        &types.AttributeValueMemberS{Value: order.UserID},
		"recipientName": &types.AttributeValueMemberS{Value: order.RecipientName},
		"occasion":      &types.AttributeValueMemberS{Value: string(order.Occasion)},
		"broadcastDate": &types.AttributeValueMemberS{Value: order.BroadcastDate},
		"message":       &types.AttributeValueMemberS{Value: strings.Join(order.MessageLines, "\n")},
		"planId":        &types.AttributeValueMemberS{Value: order.PlanID},
		"planName":      &types.AttributeValueMemberS{Value: order.PlanName},
		"price":         &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", order.Price)},
		"status":        &types.AttributeValueMemberS{Value: string(order.Status)},
		"createdAt":     &types.AttributeValueMemberS{Value: order.CreatedAt.UTC().Format(time.RFC3339)},
		"updatedAt":     &types.AttributeValueMemberS{Value: order.UpdatedAt.UTC().Format(time.RFC3339)},
	}
}

func itemToOrder(item map[string]types.AttributeValue) (domain.Order, error) {
	id, err := strAttr(item, "orderId")
	if err != nil {
		return domain.Order{}, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return domain.Order{}, err
	}
	price, err := intAttr(item, "price")
	if err != nil {
		return domain.Order{}, err
	}
	userID, _ := strAttr(item, "userId")
	recipient, _ := strAttr(item, "recipientName")
	occasion, _ := strAttr(item, "occasion")
	date, _ := strAttr(item, "broadcastDate")
	message, _ := strAttr(item, "message")
	planID, _ := strAttr(item, "planId")
	planName, _ := strAttr(item, "planName")
	createdAt, _ := strAttr(item, "createdAt")
	updatedAt, _ := strAttr(item, "updatedAt")

	order := domain.Order{
		ID:            id,
		UserID:        userID,
		RecipientName: recipient,
		Occasion:      domain.Occasion(occasion),
		BroadcastDate: date,
		PlanID:        planID,
		PlanName:      planName,
		Price:         price,
		Status:        domain.OrderStatus(status),
	}
	if message != "" {
		order.MessageLines = strings.Split(message, "\n")
	}
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		order.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		order.UpdatedAt = ts
	}
	return order, nil
}
