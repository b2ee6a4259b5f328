package hosts

import (
	"context"
	"testing"

	"tourism-compliance/internal/models"
	"tourism-compliance/internal/store/storetest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"+221 77 123 45 67", "+221771234567", true},
		{"00221771234567", "+221771234567", true},
		{"221 33 820 00 00", "+221338200000", true},
		{"0771234567", "+221771234567", true},
		{"77-123-45-67", "+221771234567", true},
		{"771234567", "+221771234567", true},
		{"+33 6 12 34 56 78", "", false},
		{"58 123 45 67", "", false},
		{"", "", false},
		{"77123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizePhone(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHostKey(t *testing.T) {
	key, ok := HostKey(&models.ScrapedListing{Platform: models.PlatformAirbnb, HostID: "42"})
	assert.True(t, ok)
	assert.Equal(t, "airbnb:42", key)

	_, ok = HostKey(&models.ScrapedListing{Platform: models.PlatformExpatDakar, HostID: "42"})
	assert.False(t, ok)

	_, ok = HostKey(&models.ScrapedListing{Platform: models.PlatformBooking})
	assert.False(t, ok)
}

func TestGroup_PhoneBeforeHostKey(t *testing.T) {
	listings := []models.ScrapedListing{
		{ID: "a", Platform: models.PlatformAirbnb, HostID: "h1", HostPhone: "77 123 45 67", HostName: "Awa", PricePerNight: models.FloatPtr(30000)},
		{ID: "b", Platform: models.PlatformExpatDakar, HostPhone: "+221771234567", HostName: "Awa D.", PricePerNight: models.FloatPtr(50000)},
		{ID: "c", Platform: models.PlatformAirbnb, HostID: "h1", PricePerNight: models.FloatPtr(20000)},
		{ID: "d", Platform: models.PlatformBooking, HostID: "h9"},
		{ID: "e", Platform: models.PlatformOther},
	}

	ops := Group(listings)
	require.Len(t, ops, 3)

	phone := ops[0]
	assert.Equal(t, ByPhone, phone.MatchedBy)
	assert.Equal(t, "+221771234567", phone.Identifier)
	assert.Equal(t, []string{"a", "b"}, phone.ListingIDs)
	assert.Equal(t, []string{"Awa", "Awa D."}, phone.Names)
	assert.Equal(t, 40000.0, phone.AvgPricePerNight)
	assert.Equal(t, 40000.0*2*15, phone.EstimatedMonthlyRevenue)

	// "a" is already claimed by the phone group, so airbnb:h1 only keeps "c".
	host := ops[1]
	assert.Equal(t, "airbnb:h1", host.Identifier)
	assert.Equal(t, []string{"c"}, host.ListingIDs)

	assert.Equal(t, "booking:h9", ops[2].Identifier)
	assert.Zero(t, ops[2].EstimatedMonthlyRevenue)

	assert.Len(t, MultiProperty(ops, 2), 1)
}

func TestCountSiblings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scraped_listings WHERE host_phone = \$1`).
		WithArgs("+221771234567").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM scraped_listings WHERE platform = \$1 AND host_id = \$2`).
		WithArgs("airbnb", "h1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	ctx := context.Background()
	n, err := CountSiblings(ctx, db, &models.ScrapedListing{HostPhone: "771234567"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = CountSiblings(ctx, db, &models.ScrapedListing{Platform: models.PlatformAirbnb, HostID: "h1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = CountSiblings(ctx, db, &models.ScrapedListing{Platform: models.PlatformKeurImmo})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadOperators(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM scraped_listings`).
		WithArgs("Dakar").
		WillReturnRows(storetest.ListingRows(
			models.ScrapedListing{ID: "a", Platform: models.PlatformAirbnb, HostID: "h1", City: "Dakar"},
			models.ScrapedListing{ID: "b", Platform: models.PlatformAirbnb, HostID: "h1", City: "Dakar"},
		))

	ops, err := LoadOperators(context.Background(), db, "Dakar")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 2, ops[0].ListingCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
