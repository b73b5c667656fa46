package montgomery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/adapter/object"
	"github.com/wiz21b/montgomery/schema"
)

func TestWalkerDelegation(t *testing.T) {
	sch := orderSchema(t)
	src := objectFactory()
	dst := objectFactory()
	w := montgomery.NewWalker()

	opT, err := w.Walk(typeAdapter(t, sch, src, "Operation"), typeAdapter(t, sch, dst, "Operation"), montgomery.Plan{})
	require.NoError(t, err)
	partT, err := w.Walk(typeAdapter(t, sch, src, "OrderPart"), typeAdapter(t, sch, dst, "OrderPart"), montgomery.Plan{
		"operation": montgomery.Delegate(opT),
	})
	require.NoError(t, err)
	custT, err := w.Walk(typeAdapter(t, sch, src, "Customer"), typeAdapter(t, sch, dst, "Customer"), montgomery.Plan{})
	require.NoError(t, err)
	orderT, err := w.Walk(typeAdapter(t, sch, src, "Order"), typeAdapter(t, sch, dst, "Order"), montgomery.Plan{
		"customer": montgomery.Delegate(custT),
		"parts":    montgomery.Delegate(partT),
	})
	require.NoError(t, err)
	require.Equal(t, "Order:object->object", orderT.Name())

	out, err := orderT.Invoke(montgomery.NewCall(nil), sampleOrder(), nil)
	require.NoError(t, err)
	order, ok := out.(*Order)
	require.True(t, ok)
	require.Equal(t, "ORD-0001", order.Reference)
	require.Equal(t, "Alice Corp", order.Customer.Name)
	require.Len(t, order.Parts, 2)
	require.Equal(t, int64(4), order.Parts[0].Quantity)
	require.Equal(t, "welding", order.Parts[0].Operation.Label)

	// The two parts shared one operation; the copies must too.
	require.Same(t, order.Parts[0].Operation, order.Parts[1].Operation)
}

func TestWalkerMissingDirective(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	_, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Order"),
		typeAdapter(t, sch, objectFactory(), "Order"),
		montgomery.Plan{"customer": montgomery.Skip()},
	)
	require.Error(t, err)
	require.True(t, montgomery.IsMissingDirective(err))
	var mde *montgomery.MissingDirectiveError
	require.ErrorAs(t, err, &mde)
	require.Equal(t, "Order", mde.Type)
	require.Equal(t, "parts", mde.Relation)
}

func TestWalkerUndeclaredAttribute(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	_, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Order"),
		typeAdapter(t, sch, objectFactory(), "Order"),
		montgomery.Plan{
			"bogus":    montgomery.Copy(),
			"customer": montgomery.Skip(),
			"parts":    montgomery.Skip(),
		},
	)
	require.Error(t, err)
	var uae *montgomery.UndeclaredAttributeError
	require.ErrorAs(t, err, &uae)
	require.Equal(t, "Order", uae.Type)
	require.Equal(t, "bogus", uae.Attribute)
	require.Contains(t, uae.Known, "customer")
	require.Contains(t, uae.Known, "parts")
}

func TestWalkerRejectsDelegatedField(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	_, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Order"),
		typeAdapter(t, sch, objectFactory(), "Order"),
		montgomery.Plan{
			"reference": montgomery.Transcode(),
			"customer":  montgomery.Skip(),
			"parts":     montgomery.Skip(),
		},
	)
	require.Error(t, err)
	var de *montgomery.DirectiveError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "reference", de.Attribute)
}

func TestWalkerRejectsSkippedKey(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	_, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Order"),
		typeAdapter(t, sch, objectFactory(), "Order"),
		montgomery.Plan{
			"order_id": montgomery.Skip(),
			"customer": montgomery.Skip(),
			"parts":    montgomery.Skip(),
		},
	)
	require.Error(t, err)
	var de *montgomery.DirectiveError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "order_id", de.Attribute)
}

func TestWalkerDuplicateRegistration(t *testing.T) {
	sch := orderSchema(t)
	src := objectFactory()
	dst := objectFactory()
	w := montgomery.NewWalker()
	_, err := w.Walk(typeAdapter(t, sch, src, "Operation"), typeAdapter(t, sch, dst, "Operation"), montgomery.Plan{})
	require.NoError(t, err)
	_, err = w.Walk(typeAdapter(t, sch, src, "Operation"), typeAdapter(t, sch, dst, "Operation"), montgomery.Plan{})
	require.Error(t, err)
	require.True(t, montgomery.IsDuplicateTransform(err))
}

func TestWalkerUnresolvedDelegation(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	_, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "OrderPart"),
		typeAdapter(t, sch, objectFactory(), "OrderPart"),
		montgomery.Plan{"operation": montgomery.Transcode()},
	)
	require.Error(t, err)
	require.True(t, montgomery.IsDependencyError(err))
	var de *montgomery.DependencyError
	require.ErrorAs(t, err, &de)
	require.Len(t, de.Missing, 1)
	require.Equal(t, "OrderPart", de.Missing[0].Type)
	require.Equal(t, "operation", de.Missing[0].Relation)
	require.Equal(t, "Operation", de.Missing[0].Target)
}

func TestInvokeNilSource(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	opT, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Operation"),
		typeAdapter(t, sch, objectFactory(), "Operation"),
		montgomery.Plan{},
	)
	require.NoError(t, err)
	out, err := opT.Invoke(montgomery.NewCall(nil), nil, nil)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestInvokeIdempotentWithinCall(t *testing.T) {
	sch := orderSchema(t)
	w := montgomery.NewWalker()
	opT, err := w.Walk(
		typeAdapter(t, sch, objectFactory(), "Operation"),
		typeAdapter(t, sch, objectFactory(), "Operation"),
		montgomery.Plan{},
	)
	require.NoError(t, err)

	call := montgomery.NewCall(nil)
	src := &Operation{OperationID: 7, Label: "welding"}
	first, err := opT.Invoke(call, src, nil)
	require.NoError(t, err)
	second, err := opT.Invoke(call, src, nil)
	require.NoError(t, err)
	require.Same(t, first, second)

	// A fresh call starts from a fresh identity cache.
	third, err := opT.Invoke(montgomery.NewCall(nil), src, nil)
	require.NoError(t, err)
	require.NotSame(t, first, third)
}

func TestCycleTermination(t *testing.T) {
	sch, err := schema.Compile(
		schema.New("Employee").
			Key("employee_id", schema.TypeInt).
			Field("name", schema.TypeString).
			One("manager", "Employee").
			Many("reports", "Employee"),
	)
	require.NoError(t, err)

	type Employee struct {
		EmployeeID int64       `xfer:"employee_id"`
		Name       string      `xfer:"name"`
		Manager    *Employee   `xfer:"manager"`
		Reports    []*Employee `xfer:"reports"`
	}
	src := object.NewFactory().Register("Employee", (*Employee)(nil))
	dst := object.NewFactory().Register("Employee", (*Employee)(nil))

	b := montgomery.NewBuilder(sch, src, dst)
	require.NoError(t, b.Build(map[string]montgomery.Plan{
		"Employee": {
			"manager": montgomery.Transcode(),
			"reports": montgomery.Transcode(),
		},
	}))
	tr, ok := b.Transform("Employee", "")
	require.True(t, ok)

	alice := &Employee{EmployeeID: 1, Name: "alice"}
	bob := &Employee{EmployeeID: 2, Name: "bob", Manager: alice}
	alice.Reports = []*Employee{bob}

	out, err := tr.Invoke(montgomery.NewCall(nil), bob, nil)
	require.NoError(t, err)
	copyBob := out.(*Employee)
	require.NotSame(t, bob, copyBob)
	require.Equal(t, "bob", copyBob.Name)
	require.Equal(t, "alice", copyBob.Manager.Name)

	// The cycle closes on the copy, not on the original.
	require.Len(t, copyBob.Manager.Reports, 1)
	require.Same(t, copyBob, copyBob.Manager.Reports[0])
}
