package contactjac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojiaojiao/Pacer/model"
	"github.com/wojiaojiao/Pacer/model/fake"
	"github.com/wojiaojiao/Pacer/state"
)

func TestAssembleShapesAndFrictionPyramid(t *testing.T) {
	km := fake.NewKinematicModel(2)
	km.LinkOffsets["LF_foot"] = [3]float64{0.2, 0, -0.3}
	km.LinkAxes["LF_foot"] = [][3]float64{{0, 0, 1}, {0, 1, 0}}

	eefs := []model.EndEffector{
		{ID: "LF", LinkID: "LF_foot", Stance: true, Active: true},
	}
	contacts := []state.Contact{
		{LinkID: "LF_foot", Point: [3]float64{0.2, 0, -0.3}, Normal: [3]float64{0, 0, 1}},
	}

	jac, err := Assemble(km, eefs, contacts)
	require.NoError(t, err)

	r, c := jac.N.Dims()
	assert.Equal(t, km.NumDOFs(), r)
	assert.Equal(t, 1, c)

	rD, cD := jac.D.Dims()
	assert.Equal(t, km.NumDOFs(), rD)
	assert.Equal(t, NK, cD)

	// D's third and fourth blocks must be the negation of the first two.
	for row := 0; row < rD; row++ {
		assert.InDelta(t, -jac.D.At(row, 0), jac.D.At(row, 2), 1e-9)
		assert.InDelta(t, -jac.D.At(row, 1), jac.D.At(row, 3), 1e-9)
	}
}

func TestAssembleIgnoresIneligibleContacts(t *testing.T) {
	km := fake.NewKinematicModel(1)
	km.LinkOffsets["RH_foot"] = [3]float64{-0.2, 0, -0.3}
	km.LinkAxes["RH_foot"] = [][3]float64{{0, 0, 1}}

	// Neither stance nor active: ineligible, even though a contact was
	// delivered for it.
	eefs := []model.EndEffector{
		{ID: "RH", LinkID: "RH_foot", Stance: false, Active: false},
	}
	contacts := []state.Contact{
		{LinkID: "RH_foot", Normal: [3]float64{0, 0, 1}},
	}

	jac, err := Assemble(km, eefs, contacts)
	require.NoError(t, err)
	_, c := jac.N.Dims()
	assert.Equal(t, 0, c)
}
