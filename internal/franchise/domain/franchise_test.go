package franchise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateRoyaltiesSingleRestaurant(t *testing.T) {
	f := Franchise{
		ID: "fr-1", TenantID: "tenant-a", Name: "North Group", OwnerName: "Kim",
		RoyaltyRate: 0.05, MarketingRate: 0.02, Currency: "USD", Active: true,
	}

	lines, totals, err := CalculateRoyalties(f, []SalesReport{
		{RestaurantID: "rest-1", Sales: 100000},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, 5000.0, lines[0].RoyaltyAmount)
	assert.Equal(t, 2000.0, lines[0].MarketingAmount)
	assert.Equal(t, 7000.0, lines[0].TotalDue)
	assert.Equal(t, 7000.0, totals.TotalDue)
}

func TestCalculateRoyaltiesRoundsToCents(t *testing.T) {
	f := Franchise{
		ID: "fr-1", TenantID: "tenant-a", Name: "North Group", OwnerName: "Kim",
		RoyaltyRate: 0.055, MarketingRate: 0.0175, Currency: "USD", Active: true,
	}

	lines, totals, err := CalculateRoyalties(f, []SalesReport{
		{RestaurantID: "rest-1", Sales: 12345.67},
	})
	require.NoError(t, err)

	// 12345.67 * 0.055 = 679.01185, 12345.67 * 0.0175 = 216.049225
	assert.Equal(t, 679.01, lines[0].RoyaltyAmount)
	assert.Equal(t, 216.05, lines[0].MarketingAmount)
	assert.Equal(t, 895.06, lines[0].TotalDue)
	assert.Equal(t, 895.06, totals.TotalDue)
}

func TestCalculateRoyaltiesAcrossRestaurants(t *testing.T) {
	f := Franchise{
		ID: "fr-1", TenantID: "tenant-a", Name: "North Group", OwnerName: "Kim",
		RoyaltyRate: 0.04, MarketingRate: 0.01, Currency: "USD", Active: true,
	}

	lines, totals, err := CalculateRoyalties(f, []SalesReport{
		{RestaurantID: "rest-1", Sales: 50000},
		{RestaurantID: "rest-2", Sales: 80000},
		{RestaurantID: "rest-3", Sales: 0},
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, 130000.0, totals.Sales)
	assert.Equal(t, 5200.0, totals.RoyaltyAmount)
	assert.Equal(t, 1300.0, totals.MarketingAmount)
	assert.Equal(t, 6500.0, totals.TotalDue)
	assert.Equal(t, 0.0, lines[2].TotalDue)
}

func TestCalculateRoyaltiesRejectsBadReports(t *testing.T) {
	f := Franchise{
		ID: "fr-1", TenantID: "tenant-a", Name: "North Group", OwnerName: "Kim",
		RoyaltyRate: 0.05, MarketingRate: 0.02, Currency: "USD", Active: true,
	}

	_, _, err := CalculateRoyalties(f, []SalesReport{{RestaurantID: "", Sales: 100}})
	assert.Error(t, err)

	_, _, err = CalculateRoyalties(f, []SalesReport{{RestaurantID: "rest-1", Sales: -1}})
	assert.Error(t, err)
}

func TestFranchiseValidateRates(t *testing.T) {
	f := Franchise{
		ID: "fr-1", TenantID: "tenant-a", Name: "North Group", OwnerName: "Kim",
		Currency: "USD", Active: true,
	}

	f.RoyaltyRate = 1.5
	assert.Error(t, f.Validate())

	f.RoyaltyRate = 0.05
	f.MarketingRate = -0.01
	assert.Error(t, f.Validate())

	f.MarketingRate = 0.02
	assert.NoError(t, f.Validate())
}
