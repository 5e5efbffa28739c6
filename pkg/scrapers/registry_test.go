package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-hunter/pkg/scrapers/base"
)

func TestBuild_KeepsOrder(t *testing.T) {
	adapters, err := Build([]string{"croma", " Amazon ", "reliance", "flipkart"}, base.Options{Query: "IFB 9 kg"})
	require.NoError(t, err)

	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	assert.Equal(t, []string{"Croma", "Amazon.in", "Reliance Digital", "Flipkart"}, names)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([]string{"amazon", "snapdeal"}, base.Options{})
	assert.ErrorContains(t, err, "not supported")

	_, err = Build([]string{"amazon", "AMAZON"}, base.Options{})
	assert.ErrorContains(t, err, "more than once")
}

func TestBuild_Empty(t *testing.T) {
	adapters, err := Build(nil, base.Options{})
	require.NoError(t, err)
	assert.Empty(t, adapters)
}

func TestAvailable(t *testing.T) {
	assert.Equal(t, []string{"amazon", "croma", "flipkart", "reliance"}, Available())
}
