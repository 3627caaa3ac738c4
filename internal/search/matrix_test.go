package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/flightfinder/internal/model"
)

func kinds(qs []model.SearchQuery) []model.QueryKind {
	out := make([]model.QueryKind, len(qs))
	for i, q := range qs {
		out[i] = q.Kind
	}
	return out
}

func TestBuildReturnTrip(t *testing.T) {
	b := NewBuilder(nil)
	qs, err := b.Build(context.Background(), Request{
		Origins: []string{"IAD", "dca", "BWI"}, Destination: "nbo",
		DepartDate: dec14, ReturnDate: model.DatePtr(dec28),
	})
	require.NoError(t, err)
	require.Len(t, qs, 9)

	assert.Equal(t, []model.QueryKind{model.QueryRoundTrip, model.QueryOutboundOneWay, model.QueryInboundOneWay},
		kinds(qs[:3]))
	assert.Equal(t, "DCA", qs[3].Origin)

	inbound := qs[2]
	assert.Equal(t, "NBO", inbound.Origin)
	assert.Equal(t, "IAD", inbound.Destination)
	assert.Equal(t, dec28, inbound.DepartDate)
	assert.Nil(t, inbound.ReturnDate)
	require.NotNil(t, inbound.PairDate)
	assert.Equal(t, dec14, *inbound.PairDate)
}

func TestBuildOneWay(t *testing.T) {
	qs, err := NewBuilder(nil).Build(context.Background(), Request{
		Origins: []string{"IAD", "DCA", "BWI"}, Destination: "NBO", DepartDate: dec14,
	})
	require.NoError(t, err)
	assert.Len(t, qs, 3)
	for _, q := range qs {
		assert.Equal(t, model.QueryOneWay, q.Kind)
	}
}

func TestBuildFlexDays(t *testing.T) {
	for _, flex := range []int{0, 1, 3, 7} {
		qs, err := NewBuilder(nil).Build(context.Background(), Request{
			Origins: []string{"IAD", "DCA"}, Destination: "NBO",
			DepartDate: dec14, ReturnDate: model.DatePtr(dec28), FlexDays: flex,
		})
		require.NoError(t, err)
		assert.Len(t, qs, 3*2*(2*flex+1), "flex %d", flex)
	}

	qs, err := NewBuilder(nil).Build(context.Background(), Request{
		Origins: []string{"IAD"}, Destination: "NBO",
		DepartDate: dec14, ReturnDate: model.DatePtr(dec28), FlexDays: 1,
	})
	require.NoError(t, err)
	// round trips first, offsets ascending, trip length preserved
	assert.Equal(t, dec14.AddDays(-1), qs[0].DepartDate)
	assert.Equal(t, dec28.AddDays(-1), *qs[0].ReturnDate)
	assert.Equal(t, dec14, qs[1].DepartDate)
	assert.Equal(t, dec14.AddDays(1), qs[2].DepartDate)
	assert.Equal(t, model.QueryOutboundOneWay, qs[3].Kind)
}

func TestBuildSkiplagged(t *testing.T) {
	b := NewBuilder(fakeTargets{"YAO": {"ADD", "CDG", "KGL", "LBV"}})
	qs, err := b.Build(context.Background(), Request{
		Origins: []string{"IAD", "DCA"}, Destination: "YAO", DepartDate: dec14,
		ReturnDate: model.DatePtr(dec28), IncludeSkiplagged: true,
	})
	require.NoError(t, err)
	require.Len(t, qs, 2*(3+4))

	sk := qs[3]
	assert.Equal(t, model.QuerySkiplagged, sk.Kind)
	assert.Equal(t, "IAD", sk.Origin)
	assert.Equal(t, "ADD", sk.Destination)
	assert.Equal(t, "YAO", sk.IntendedDestination)
	assert.Nil(t, sk.ReturnDate)
	require.NotNil(t, sk.PairDate)
	assert.Equal(t, dec28, *sk.PairDate)

	withoutFlag, err := b.Build(context.Background(), Request{
		Origins: []string{"IAD"}, Destination: "YAO", DepartDate: dec14,
	})
	require.NoError(t, err)
	assert.Len(t, withoutFlag, 1)
}

func TestBuildDeterministicAndDeduplicated(t *testing.T) {
	b := NewBuilder(fakeTargets{"NBO": {"ADD", "KGL"}})
	req := Request{
		Origins: []string{"IAD", "iad", "BWI"}, Destination: "NBO", DepartDate: dec14,
		IncludeSkiplagged: true, FlexDays: 2,
	}
	first, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, q := range first {
		assert.False(t, seen[q.Key()], "duplicate %s", q.Key())
		seen[q.Key()] = true
	}
	assert.Len(t, first, 2*(1+2)*5)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"no origins", Request{Destination: "NBO", DepartDate: dec14}},
		{"bad origin", Request{Origins: []string{"IA"}, Destination: "NBO", DepartDate: dec14}},
		{"bad destination", Request{Origins: []string{"IAD"}, Destination: "N8O", DepartDate: dec14}},
		{"flex too wide", Request{Origins: []string{"IAD"}, Destination: "NBO", DepartDate: dec14, FlexDays: 8}},
		{"negative flex", Request{Origins: []string{"IAD"}, Destination: "NBO", DepartDate: dec14, FlexDays: -1}},
		{"bad cabin", Request{Origins: []string{"IAD"}, Destination: "NBO", DepartDate: dec14, Cabin: "steerage"}},
		{"no date", Request{Origins: []string{"IAD"}, Destination: "NBO"}},
		{"origin is destination", Request{Origins: []string{"IAD", "nbo"}, Destination: "NBO", DepartDate: dec14}},
		{"return first", Request{Origins: []string{"IAD"}, Destination: "NBO", DepartDate: dec28, ReturnDate: model.DatePtr(dec14)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(nil).Build(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestIATAValidationRegistered(t *testing.T) {
	assert.NoError(t, validate.Var("IAD", "iata"))
	assert.NoError(t, validate.Var("nbo", "iata"))
	assert.Error(t, validate.Var("N8O", "iata"))
	assert.Error(t, validate.Var("IADX", "iata"))
}
