package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoseGlued(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Paracetamol 500 mg", "Paracetamol 500mg"},
		{"Amoxicilina 250 MGS suspension", "Amoxicilina 250mg suspension"},
		{"Diclofenaco 75mg", "Diclofenaco 75mg"},
		{"Lidocaina 2 %", "Lidocaina 2%"},
		{"Caja con 500 gotas", "Caja con 500 gotas"},
		{"  Salbutamol   0.5 ML  ", "Salbutamol 0.5ml"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DoseGlued(tt.in))
		})
	}
}

func TestActiveIngredient(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Paracetamol 500 mg tabletas", "paracetamol"},
		{"Tabletas Ibuprofeno 400mg", "ibuprofeno"},
		{"Omeprazol", "omeprazol"},
		{"500 mg", "500"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ActiveIngredient(tt.in))
		})
	}
}

func TestNameAndDose(t *testing.T) {
	tests := []struct{ in, want string }{
		{"diclofenaco inyectable 75 mg", "diclofenaco 75 mg"},
		{"Acetaminofen 500mg tabletas", "paracetamol 500 mg"},
		{"Complejo B 12 ampolletas", "complejo b"},
		{"Ibuprofeno", "ibuprofeno"},
		{"Ketorolaco 30 mgs solucion", "ketorolaco 30 mg"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NameAndDose(tt.in))
		})
	}
}

func TestPassthrough(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Paracetamol 500 mgs tabletas ", "Paracetamol 500 mg tabletas"},
		{"Ambroxol  30 MLS", "Ambroxol 30 ml"},
		{"Loratadina", "Loratadina"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Passthrough(tt.in))
		})
	}
}

func TestAdapterByName(t *testing.T) {
	for _, name := range AdapterNames() {
		a, err := AdapterByName(name)
		require.NoError(t, err, "registered adapter %s should resolve", name)
		assert.NotNil(t, a)
	}

	a, err := AdapterByName("")
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofeno 400 mg", a("Ibuprofeno 400 mg"), "empty name selects passthrough")

	_, err = AdapterByName("xpath")
	assert.ErrorContains(t, err, "unknown query adapter")
}

func TestAdapters_AreTotal(t *testing.T) {
	inputs := []string{"", " ", "%", "mg", "1", "ñ", "tabletas cápsulas"}
	for _, name := range AdapterNames() {
		a, err := AdapterByName(name)
		require.NoError(t, err)
		for _, in := range inputs {
			assert.NotPanics(t, func() { _ = a(in) }, "%s must be total on %q", name, in)
		}
	}
}
