package compare

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/flightfinder/internal/model"
)

var (
	departDay = model.NewDate(2026, time.December, 14)
	returnDay = model.NewDate(2026, time.December, 28)
)

func half(t *testing.T, price int64, kind model.QueryKind, from, to string, ref string) model.Itinerary {
	t.Helper()
	it := oneWay(t, price, from, direct(to))
	it.BookingReference = ref
	switch kind {
	case model.QueryInboundOneWay:
		it.Query = model.SearchQuery{Origin: from, Destination: to, DepartDate: returnDay, Kind: kind, PairDate: model.DatePtr(departDay)}
	default:
		it.Query = model.SearchQuery{Origin: from, Destination: to, DepartDate: departDay, Kind: kind, PairDate: model.DatePtr(returnDay)}
	}
	return it
}

func roundTrip(t *testing.T, price int64, from, to string) model.Itinerary {
	t.Helper()
	it := oneWay(t, price, from, direct(to))
	it.BookingKind = model.BookingRoundTrip
	it.Query = model.SearchQuery{Origin: from, Destination: to, DepartDate: departDay, ReturnDate: model.DatePtr(returnDay), Kind: model.QueryRoundTrip}
	return it
}

func TestCombineOneWaysExactSum(t *testing.T) {
	a := half(t, 0, model.QueryOutboundOneWay, "IAD", "NBO", "https://a")
	a.TotalPrice = model.Money(97703) // 977.03
	b := half(t, 0, model.QueryInboundOneWay, "NBO", "IAD", "https://b")
	b.TotalPrice = model.Money(97702) // 977.02

	c := CombineOneWays(a, b)
	assert.Equal(t, a.TotalPrice+b.TotalPrice, c.TotalPrice)
	assert.Equal(t, "1954.05", c.TotalPrice.String())
	assert.Equal(t, model.BookingTwoOneWays, c.BookingKind)
	assert.Equal(t, "https://a|https://b", c.BookingReference)
	assert.Equal(t, a.OutboundLegs, c.OutboundLegs)
	assert.Equal(t, b.OutboundLegs, c.ReturnLegs)
	require.NotNil(t, c.Query.ReturnDate)
	assert.Equal(t, returnDay.String(), c.Query.ReturnDate.String())
	assert.NoError(t, c.Validate())
}

func TestPairOneWaysGreedy(t *testing.T) {
	out := []model.Itinerary{
		half(t, 300, model.QueryOutboundOneWay, "IAD", "NBO", "o1"),
		half(t, 200, model.QueryOutboundOneWay, "IAD", "NBO", "o2"),
		half(t, 100, model.QueryOutboundOneWay, "DCA", "NBO", "o3"),
	}
	in := []model.Itinerary{
		half(t, 50, model.QueryInboundOneWay, "NBO", "IAD", "i1"),
		half(t, 80, model.QueryInboundOneWay, "NBO", "IAD", "i2"),
	}

	got := PairOneWays(out, in)
	require.Len(t, got, 2)
	assert.Equal(t, "o2|i1", got[0].BookingReference)
	assert.Equal(t, model.Dollars(250), got[0].TotalPrice)
	assert.Equal(t, "o1|i2", got[1].BookingReference)
}

func TestPairableRequiresMatchingDates(t *testing.T) {
	out := half(t, 100, model.QueryOutboundOneWay, "IAD", "NBO", "o")
	in := half(t, 100, model.QueryInboundOneWay, "NBO", "IAD", "i")
	assert.True(t, Pairable(out, in))

	shifted := in
	shifted.Query.DepartDate = returnDay.AddDays(1)
	assert.False(t, Pairable(out, shifted))
	assert.False(t, Pairable(in, out))
}

func TestRankReturnTrip(t *testing.T) {
	itins := []model.Itinerary{
		roundTrip(t, 1954, "IAD", "NBO"),
		half(t, 700, model.QueryOutboundOneWay, "IAD", "NBO", "o"),
		half(t, 650, model.QueryInboundOneWay, "NBO", "IAD", "i"),
		roundTrip(t, 2265, "DCA", "NBO"),
		roundTrip(t, 1800, "BWI", "NBO"),
	}
	got, err := Rank(itins, Constraints{TopN: 3}, true)
	require.NoError(t, err)
	assert.Equal(t, []model.Money{model.Dollars(1350), model.Dollars(1800), model.Dollars(1954)}, prices(got))
	assert.Equal(t, model.BookingTwoOneWays, got[0].BookingKind)
}

func TestRankSkiplaggedOneWay(t *testing.T) {
	hidden := oneWay(t, 300, "IAD", direct("YAO"), hop{to: "CDG", carrier: "AF", wait: 2 * time.Hour, flight: 6 * time.Hour})
	hidden.BookingKind = model.BookingSkiplagged
	hidden.Query = model.SearchQuery{Origin: "IAD", Destination: "CDG", DepartDate: departDay, Kind: model.QuerySkiplagged, IntendedDestination: "YAO"}

	bogus := oneWay(t, 100, "IAD", direct("CDG"))
	bogus.BookingKind = model.BookingSkiplagged
	bogus.Query = hidden.Query

	plain := oneWay(t, 500, "IAD", direct("YAO"))
	plain.Query = model.SearchQuery{Origin: "IAD", Destination: "YAO", DepartDate: departDay, Kind: model.QueryOneWay}

	got, err := Rank([]model.Itinerary{plain, bogus, hidden}, Constraints{}, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsSkiplagged())
	assert.Equal(t, "YAO", got[0].DeplaneAt)
	assert.Equal(t, model.Dollars(500), got[1].TotalPrice)
}

func TestRankNoResults(t *testing.T) {
	plain := oneWay(t, 500, "IAD", direct("NBO"))
	plain.Query = model.SearchQuery{Kind: model.QueryOneWay}
	pricier := oneWay(t, 800, "IAD", direct("NBO"))
	pricier.Query = plain.Query

	got, err := Rank([]model.Itinerary{pricier, plain}, Constraints{MaxPrice: model.Dollars(100)}, false)
	assert.Empty(t, got)

	var nerr *NoResultsError
	require.ErrorAs(t, err, &nerr)
	require.NotNil(t, nerr.Cheapest)
	assert.Equal(t, model.Dollars(500), nerr.Cheapest.TotalPrice)
	assert.True(t, errors.Is(err, ErrNoResults))

	_, err = Rank(nil, Constraints{}, false)
	require.ErrorAs(t, err, &nerr)
	assert.Nil(t, nerr.Cheapest)
}

func TestRankHalvesFilteredBeforePairing(t *testing.T) {
	out := half(t, 100, model.QueryOutboundOneWay, "IAD", "NBO", "cheap")
	out.OutboundLegs = legs(t, "IAD", base, direct("ADD"), hop{to: "NBO", carrier: "ET", wait: time.Hour, flight: time.Hour})
	out2 := half(t, 150, model.QueryOutboundOneWay, "IAD", "NBO", "nonstop")
	in := half(t, 100, model.QueryInboundOneWay, "NBO", "IAD", "back")

	zero := 0
	got, err := Rank([]model.Itinerary{out, out2, in}, Constraints{MaxStops: &zero}, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nonstop|back", got[0].BookingReference)
}
