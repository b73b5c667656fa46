package montgomery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/adapter/object"
	"github.com/wiz21b/montgomery/schema"
)

type Customer struct {
	CustomerID int64  `xfer:"customer_id"`
	Name       string `xfer:"name"`
}

type Operation struct {
	OperationID int64  `xfer:"operation_id"`
	Label       string `xfer:"label"`
}

type OrderPart struct {
	PartID    int64      `xfer:"part_id"`
	Quantity  int64      `xfer:"quantity"`
	Operation *Operation `xfer:"operation"`
}

type Order struct {
	OrderID   int64        `xfer:"order_id"`
	Reference string       `xfer:"reference"`
	Customer  *Customer    `xfer:"customer"`
	Parts     []*OrderPart `xfer:"parts"`
}

func orderSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Compile(
		schema.New("Customer").
			Key("customer_id", schema.TypeInt).
			Field("name", schema.TypeString),
		schema.New("Operation").
			Key("operation_id", schema.TypeInt).
			Field("label", schema.TypeString),
		schema.New("OrderPart").
			Key("part_id", schema.TypeInt).
			Field("quantity", schema.TypeInt).
			One("operation", "Operation"),
		schema.New("Order").
			Key("order_id", schema.TypeInt).
			Field("reference", schema.TypeString).
			One("customer", "Customer").
			Many("parts", "OrderPart"),
	)
	require.NoError(t, err)
	return sch
}

func objectFactory() *object.Factory {
	return object.NewFactory().
		Register("Customer", (*Customer)(nil)).
		Register("Operation", (*Operation)(nil)).
		Register("OrderPart", (*OrderPart)(nil)).
		Register("Order", (*Order)(nil))
}

func orderPlans() map[string]montgomery.Plan {
	return map[string]montgomery.Plan{
		"Customer":  {},
		"Operation": {},
		"OrderPart": {"operation": montgomery.Transcode()},
		"Order": {
			"customer": montgomery.Transcode(),
			"parts":    montgomery.Transcode(),
		},
	}
}

func sampleOrder() *Order {
	weld := &Operation{OperationID: 7, Label: "welding"}
	return &Order{
		OrderID:   1,
		Reference: "ORD-0001",
		Customer:  &Customer{CustomerID: 3, Name: "Alice Corp"},
		Parts: []*OrderPart{
			{PartID: 10, Quantity: 4, Operation: weld},
			{PartID: 11, Quantity: 2, Operation: weld},
		},
	}
}

func typeAdapter(t *testing.T, sch *schema.Schema, f montgomery.AdapterFactory, name string) montgomery.Adapter {
	t.Helper()
	et, ok := sch.Type(name)
	require.True(t, ok, "entity type %s", name)
	a, err := f.Adapter(et)
	require.NoError(t, err)
	return a
}
