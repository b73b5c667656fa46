package object_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiz21b/montgomery"
	"github.com/wiz21b/montgomery/adapter/object"
	"github.com/wiz21b/montgomery/schema"
)

// Gadget binds "serial" by tag, "weight" by camelized name and
// "display_name" through a method.
type Gadget struct {
	SerialNo string `xfer:"serial"`
	Weight   float64
}

func (g *Gadget) DisplayName() string { return "G-" + g.SerialNo }

// GadgetRecord is the destination shape; the computed property lands
// in a plain field there.
type GadgetRecord struct {
	SerialNo    string  `xfer:"serial"`
	Weight      float64 `xfer:"weight"`
	DisplayName string  `xfer:"display_name"`
}

func gadgetSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Compile(
		schema.New("Gadget").
			Key("serial", schema.TypeString).
			Field("weight", schema.TypeFloat).
			Computed("display_name", schema.TypeString),
	)
	require.NoError(t, err)
	return sch
}

func TestBindingAndComputedMethod(t *testing.T) {
	sch := gadgetSchema(t)
	src := object.NewFactory().Register("Gadget", (*Gadget)(nil))
	dst := object.NewFactory().Register("Gadget", (*GadgetRecord)(nil))

	b := montgomery.NewBuilder(sch, src, dst)
	require.NoError(t, b.Build(map[string]montgomery.Plan{"Gadget": {}}))
	tr, ok := b.Transform("Gadget", "")
	require.True(t, ok)

	out, err := tr.Invoke(montgomery.NewCall(nil), &Gadget{SerialNo: "123", Weight: 1.5}, nil)
	require.NoError(t, err)
	rec := out.(*GadgetRecord)
	require.Equal(t, "123", rec.SerialNo)
	require.Equal(t, 1.5, rec.Weight)
	require.Equal(t, "G-123", rec.DisplayName)
}

func TestAdapterErrors(t *testing.T) {
	sch := gadgetSchema(t)
	gadget, _ := sch.Type("Gadget")

	// Unregistered entity type.
	_, err := object.NewFactory().Adapter(gadget)
	require.Error(t, err)
	require.ErrorIs(t, err, montgomery.ErrRepresentation)

	// Struct missing a declared attribute.
	type bare struct {
		SerialNo string `xfer:"serial"`
	}
	_, err = object.NewFactory().Register("Gadget", bare{}).Adapter(gadget)
	require.Error(t, err)
	require.ErrorIs(t, err, montgomery.ErrRepresentation)
}

func TestToBaseNormalizesAndRejects(t *testing.T) {
	sch := gadgetSchema(t)
	gadget, _ := sch.Type("Gadget")
	a, err := object.NewFactory().Register("Gadget", (*Gadget)(nil)).Adapter(gadget)
	require.NoError(t, err)

	weight, ok := gadget.Field("weight")
	require.True(t, ok)
	v, err := a.ToBase(weight, float32(2))
	require.NoError(t, err)
	require.Equal(t, float64(2), v)

	v, err = a.ToBase(weight, nil)
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = a.ToBase(weight, "heavy")
	require.Error(t, err)
	require.ErrorIs(t, err, montgomery.ErrRepresentation)
}

func TestSetCollectionReconciliation(t *testing.T) {
	sch, err := schema.Compile(
		schema.New("Member").
			Key("member_id", schema.TypeInt).
			Field("name", schema.TypeString),
		schema.New("Team").
			Key("name", schema.TypeString).
			ManySet("members", "Member"),
	)
	require.NoError(t, err)

	type Member struct {
		MemberID int64  `xfer:"member_id"`
		Name     string `xfer:"name"`
	}
	type Team struct {
		Name    string               `xfer:"name"`
		Members map[*Member]struct{} `xfer:"members"`
	}
	factory := func() *object.Factory {
		return object.NewFactory().
			Register("Member", (*Member)(nil)).
			Register("Team", (*Team)(nil))
	}

	b := montgomery.NewBuilder(sch, factory(), factory())
	require.NoError(t, b.Build(map[string]montgomery.Plan{
		"Member": {},
		"Team":   {"members": montgomery.Transcode()},
	}))
	tr, ok := b.Transform("Team", "")
	require.True(t, ok)

	src := &Team{
		Name: "crew",
		Members: map[*Member]struct{}{
			{MemberID: 1, Name: "ann"}: {},
			{MemberID: 2, Name: "ben"}: {},
		},
	}
	out, err := tr.Invoke(montgomery.NewCall(nil), src, nil)
	require.NoError(t, err)
	team := out.(*Team)
	require.Len(t, team.Members, 2)

	// Reconcile into an existing set: member 1 is reused, member 9
	// dropped.
	keep := &Member{MemberID: 1, Name: "stale"}
	dest := &Team{
		Name: "crew",
		Members: map[*Member]struct{}{
			keep:                        {},
			{MemberID: 9, Name: "gone"}: {},
		},
	}
	_, err = tr.Invoke(montgomery.NewCall(nil), src, dest)
	require.NoError(t, err)
	require.Len(t, dest.Members, 2)
	_, reused := dest.Members[keep]
	require.True(t, reused)
	require.Equal(t, "ann", keep.Name)
}
