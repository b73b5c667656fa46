package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/adapter/object"
	"github.com/wiz21b/montgomery/adapter/record"
	"github.com/wiz21b/montgomery/schema"
)

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
	OrderID int64        `xfer:"order_id"`
	Parts   []*OrderPart `xfer:"parts"`
}

func orderSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Compile(
		schema.New("Operation").
			Key("operation_id", schema.TypeInt).
			Field("label", schema.TypeString),
		schema.New("OrderPart").
			Key("part_id", schema.TypeInt).
			Field("quantity", schema.TypeInt).
			One("operation", "Operation"),
		schema.New("Order").
			Key("order_id", schema.TypeInt).
			Many("parts", "OrderPart"),
	)
	require.NoError(t, err)
	return sch
}

func objectFactory() *object.Factory {
	return object.NewFactory().
		Register("Operation", (*Operation)(nil)).
		Register("OrderPart", (*OrderPart)(nil)).
		Register("Order", (*Order)(nil))
}

func orderPlans() map[string]montgomery.Plan {
	return map[string]montgomery.Plan{
		"Operation": {},
		"OrderPart": {"operation": montgomery.Transcode()},
		"Order":     {"parts": montgomery.Transcode()},
	}
}

func flatten(t *testing.T, sch *schema.Schema, order *Order) record.Record {
	t.Helper()
	b := montgomery.NewBuilder(sch, objectFactory(), record.NewFactory())
	require.NoError(t, b.Build(orderPlans()))
	tr, ok := b.Transform("Order", "")
	require.True(t, ok)
	out, err := tr.Invoke(montgomery.NewCall(nil), order, nil)
	require.NoError(t, err)
	return out.(record.Record)
}

func restore(t *testing.T, sch *schema.Schema, rec record.Record) *Order {
	t.Helper()
	b := montgomery.NewBuilder(sch, record.NewFactory(), objectFactory())
	require.NoError(t, b.Build(orderPlans()))
	tr, ok := b.Transform("Order", "")
	require.True(t, ok)
	out, err := tr.Invoke(montgomery.NewCall(nil), rec, nil)
	require.NoError(t, err)
	return out.(*Order)
}

func sharedOrder() *Order {
	weld := &Operation{OperationID: 7, Label: "welding"}
	return &Order{
		OrderID: 1,
		Parts: []*OrderPart{
			{PartID: 10, Quantity: 4, Operation: weld},
			{PartID: 11, Quantity: 2, Operation: weld},
		},
	}
}

func TestFlattenSharedReferenceByBusinessKey(t *testing.T) {
	sch := orderSchema(t)
	rec := flatten(t, sch, sharedOrder())

	require.Equal(t, int64(1), rec["order_id"])
	parts, ok := rec["parts"].([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)

	// First encounter flattens in full, second collapses to a short
	// reference carrying the business key.
	full, ok := parts[0].(record.Record)["operation"].(record.Record)
	require.True(t, ok)
	require.Equal(t, "welding", full["label"])
	require.NotContains(t, full, record.RefField)
	require.NotContains(t, full, record.IDField)

	short, ok := parts[1].(record.Record)["operation"].(record.Record)
	require.True(t, ok)
	require.Equal(t, record.Record{record.RefField: []any{int64(7)}}, short)
}

func TestFlattenSharedReferenceByIdentityToken(t *testing.T) {
	sch := orderSchema(t)
	order := sharedOrder()

	// The shared operation has no usable business key; an identity
	// token takes its place.
	order.Parts[0].Operation.OperationID = 0
	rec := flatten(t, sch, order)
	parts := rec["parts"].([]any)

	full := parts[0].(record.Record)["operation"].(record.Record)
	tok, ok := full[record.IDField].(string)
	require.True(t, ok)
	require.NotEmpty(t, tok)

	short := parts[1].(record.Record)["operation"].(record.Record)
	require.Equal(t, record.Record{record.RefField: tok}, short)

	// The short reference resolves back to a single shared instance.
	restored := restore(t, sch, rec)
	require.Same(t, restored.Parts[0].Operation, restored.Parts[1].Operation)
	require.Equal(t, "welding", restored.Parts[0].Operation.Label)
}

func TestRestoreRecoversSharing(t *testing.T) {
	sch := orderSchema(t)
	restored := restore(t, sch, flatten(t, sch, sharedOrder()))

	require.Equal(t, int64(1), restored.OrderID)
	require.Len(t, restored.Parts, 2)
	require.Equal(t, int64(4), restored.Parts[0].Quantity)
	require.Same(t, restored.Parts[0].Operation, restored.Parts[1].Operation)
	require.Equal(t, int64(7), restored.Parts[0].Operation.OperationID)
}

func TestRecordToRecordKeepsIdentityMarkers(t *testing.T) {
	sch := orderSchema(t)
	order := sharedOrder()
	order.Parts[0].Operation.OperationID = 0
	rec := flatten(t, sch, order)
	tok := rec["parts"].([]any)[0].(record.Record)["operation"].(record.Record)[record.IDField]

	b := montgomery.NewBuilder(sch, record.NewFactory(), record.NewFactory())
	require.NoError(t, b.Build(orderPlans()))
	tr, ok := b.Transform("Order", "")
	require.True(t, ok)
	out, err := tr.Invoke(montgomery.NewCall(nil), rec, nil)
	require.NoError(t, err)

	// The copy keeps the producer's identity marker, so the sharing
	// still resolves downstream.
	parts := out.(record.Record)["parts"].([]any)
	full := parts[0].(record.Record)["operation"].(record.Record)
	require.Equal(t, tok, full[record.IDField])
	require.Equal(t, "welding", full["label"])
	short := parts[1].(record.Record)["operation"].(record.Record)
	require.Equal(t, record.Record{record.RefField: tok}, short)
}

func TestRecordToRecordWithoutBusinessKey(t *testing.T) {
	sch := orderSchema(t)
	b := montgomery.NewBuilder(sch, record.NewFactory(), record.NewFactory())
	require.NoError(t, b.Build(orderPlans()))
	tr, ok := b.Transform("Operation", "")
	require.True(t, ok)

	out, err := tr.Invoke(montgomery.NewCall(nil),
		record.Record{"label": "welding", record.IDField: "elsewhere/1"}, nil)
	require.NoError(t, err)
	copied := out.(record.Record)
	require.Equal(t, "welding", copied["label"])
	require.Equal(t, "elsewhere/1", copied[record.IDField])
}

func TestAbsentRelationStaysAbsent(t *testing.T) {
	sch := orderSchema(t)
	b := montgomery.NewBuilder(sch, record.NewFactory(), objectFactory())
	require.NoError(t, b.Build(orderPlans()))
	tr, ok := b.Transform("OrderPart", "")
	require.True(t, ok)

	existing := &Operation{OperationID: 9, Label: "kept"}
	dest := &OrderPart{PartID: 1, Operation: existing}

	// The record does not carry the relation at all, so the existing
	// destination value is left untouched.
	out, err := tr.Invoke(montgomery.NewCall(nil), record.Record{"part_id": int64(1), "quantity": int64(5)}, dest)
	require.NoError(t, err)
	require.Same(t, dest, out)
	require.Same(t, existing, dest.Operation)

	// An explicit nil clears it.
	_, err = tr.Invoke(montgomery.NewCall(nil), record.Record{"part_id": int64(1), "operation": nil}, dest)
	require.NoError(t, err)
	require.Nil(t, dest.Operation)
}
