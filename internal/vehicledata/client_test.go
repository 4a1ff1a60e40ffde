package vehicledata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myautowhiz-backend/internal/cache"
	apperrors "myautowhiz-backend/internal/errors"
)

const hondaDecode = `{
  "Count": 1,
  "Message": "Results returned successfully",
  "Results": [{
    "VIN": "1HGBH41JXMN109186",
    "ModelYear": "1991",
    "Make": "HONDA",
    "Model": "Civic",
    "Trim": "LX",
    "BodyClass": "Sedan/Saloon",
    "Doors": "4",
    "EngineCylinders": "4",
    "DisplacementL": "1.5",
    "EngineHP": "",
    "FuelTypePrimary": "Gasoline",
    "TransmissionStyle": "Manual",
    "TransmissionSpeeds": "5",
    "DriveType": "FWD",
    "Manufacturer": "AMERICAN HONDA MOTOR CO., INC.",
    "PlantCity": "MARYSVILLE",
    "PlantState": "OHIO",
    "PlantCountry": "UNITED STATES (USA)",
    "AirBagLocFront": "1st Row (Driver and Passenger)",
    "ABS": "Not Applicable",
    "ErrorCode": "8",
    "ErrorText": "8 - No detailed data available currently"
  }]
}`

const civicRecalls = `{
  "Count": 2,
  "Message": "Results returned successfully",
  "results": [
    {"NHTSACampaignNumber": "91V123000", "Manufacturer": "Honda", "ReportReceivedDate": "01/05/1991",
     "Component": "SEAT BELTS", "Summary": "Belt may not latch.", "Consequence": "Injury risk.",
     "Remedy": "Dealers will replace.", "Notes": "Owners may contact Honda.", "parkIt": false},
    {"NHTSACampaignNumber": "92V001000", "Manufacturer": "Honda", "ReportReceivedDate": "02/01/1992",
     "Component": "FUEL SYSTEM", "Summary": "Leak.", "Consequence": "Fire risk.", "Remedy": "Replace line.", "Notes": ""}
  ]
}`

type fakeNHTSA struct {
	server   *httptest.Server
	decodes  atomic.Int32
	batches  atomic.Int32
	recalls  atomic.Int32
	status   int
	lastForm string
}

func newFakeNHTSA(t *testing.T) *fakeNHTSA {
	t.Helper()
	f := &fakeNHTSA{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/vehicles/DecodeVinValues/", func(w http.ResponseWriter, r *http.Request) {
		f.decodes.Add(1)
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/5YJSA1E26HF000000") {
			fmt.Fprint(w, `{"Count":0,"Results":[]}`)
			return
		}
		fmt.Fprint(w, hondaDecode)
	})
	mux.HandleFunc("/vehicles/DecodeVINValuesBatch/", func(w http.ResponseWriter, r *http.Request) {
		f.batches.Add(1)
		_ = r.ParseForm()
		f.lastForm = r.PostForm.Get("data")
		var rows []string
		for _, vin := range strings.Split(f.lastForm, ";") {
			rows = append(rows, fmt.Sprintf(`{"VIN":%q,"ModelYear":"2020","Make":"TOYOTA","Model":"Camry","ErrorCode":"0"}`, vin))
		}
		fmt.Fprintf(w, `{"Count":%d,"Results":[%s]}`, len(rows), strings.Join(rows, ","))
	})
	mux.HandleFunc("/recalls/recallsByVehicle", func(w http.ResponseWriter, r *http.Request) {
		f.recalls.Add(1)
		if r.URL.Query().Get("make") != "HONDA" || r.URL.Query().Get("modelYear") != "1991" {
			fmt.Fprint(w, `{"Count":0,"results":[]}`)
			return
		}
		fmt.Fprint(w, civicRecalls)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNHTSA) client(c cache.Cache) *Client {
	return NewClient(Options{
		VPICBaseURL:    f.server.URL + "/vehicles",
		RecallsBaseURL: f.server.URL,
		Timeout:        2 * time.Second,
		Cache:          c,
		DecodeTTL:      24 * time.Hour,
		RecallTTL:      time.Hour,
	})
}

func TestDecodeVin(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	v, err := client.DecodeVin(context.Background(), "1hgbh41jxmn109186")
	require.NoError(t, err)

	assert.Equal(t, "1HGBH41JXMN109186", v.VIN)
	require.NotNil(t, v.Year)
	assert.Equal(t, 1991, *v.Year)
	assert.Equal(t, "HONDA", v.Make)
	assert.Equal(t, "Civic", v.Model)
	assert.Equal(t, 4, *v.Doors)
	assert.Equal(t, 4, *v.Engine.Cylinders)
	assert.InDelta(t, 1.5, *v.Engine.DisplacementL, 0.001)
	assert.Nil(t, v.Engine.Horsepower)
	assert.Equal(t, 5, *v.Transmission.Speeds)
	assert.Equal(t, "MARYSVILLE", v.Plant.City)
	assert.Equal(t, "", v.Safety.ABS)
	assert.Equal(t, "8", v.ErrorCode)
	assert.Contains(t, v.Warning, "No detailed data")
}

func TestDecodeVinValidatesBeforeNetwork(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	for _, vin := range []string{"", "123", "1HGBH41JXMN1091861", "1HGBH41IXMN109186", "1HGBH41OXMN109186", "1HGBH41QXMN109186"} {
		_, err := client.DecodeVin(context.Background(), vin)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), vin)
	}
	assert.EqualValues(t, 0, fake.decodes.Load())
}

func TestDecodeVinUpstreamFailures(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	_, err := client.DecodeVin(context.Background(), "5YJSA1E26HF000000")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	fake.status = http.StatusServiceUnavailable
	_, err = client.DecodeVin(context.Background(), "1HGBH41JXMN109186")
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
}

func TestDecodeVinTimesOut(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, hondaDecode)
	}))
	defer slow.Close()

	client := NewClient(Options{VPICBaseURL: slow.URL, Timeout: 50 * time.Millisecond})
	_, err := client.DecodeVin(context.Background(), "1HGBH41JXMN109186")
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
}

func TestDecodeVinUsesCache(t *testing.T) {
	fake := newFakeNHTSA(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	client := fake.client(cache.NewRedisCache(rdb, "vehicledata"))

	for i := 0; i < 3; i++ {
		v, err := client.DecodeVin(context.Background(), "1HGBH41JXMN109186")
		require.NoError(t, err)
		assert.Equal(t, "Civic", v.Model)
	}
	assert.EqualValues(t, 1, fake.decodes.Load())
	assert.True(t, mr.Exists("vehicledata:decode:1HGBH41JXMN109186"))
	assert.InDelta(t, (24 * time.Hour).Seconds(), mr.TTL("vehicledata:decode:1HGBH41JXMN109186").Seconds(), 1)
}

func TestBatchDecodeVins(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	result, err := client.BatchDecodeVins(context.Background(), []string{
		"4T1B11HK5KU000001",
		"4t1b11hk5ku000002",
		"bad",
		"4T1B11HK5KU00000I",
		"4T1B11HK5KU000001",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []string{"bad", "4T1B11HK5KU00000I"}, result.Invalid)
	assert.Equal(t, "4T1B11HK5KU000001;4T1B11HK5KU000002", fake.lastForm)
	assert.Equal(t, "TOYOTA", result.Vehicles[0].Make)
}

func TestBatchDecodeVinsLimits(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	vins := make([]string, MaxBatchSize+1)
	for i := range vins {
		vins[i] = fmt.Sprintf("4T1B11HK5KU%06d", i)
	}
	_, err := client.BatchDecodeVins(context.Background(), vins)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = client.BatchDecodeVins(context.Background(), []string{"nope", "1HGBH41QXMN109186"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	assert.EqualValues(t, 0, fake.batches.Load())
}

func TestGetRecallsByVIN(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	result, err := client.GetRecalls(context.Background(), RecallQuery{VIN: "1HGBH41JXMN109186"})
	require.NoError(t, err)

	assert.Equal(t, "HONDA", result.Make)
	assert.Equal(t, "1991", result.Year)
	assert.Equal(t, "1HGBH41JXMN109186", result.VIN)
	assert.Equal(t, 2, result.Count)
	assert.True(t, result.HasOpenRecalls)
	assert.Equal(t, Recall{
		CampaignNumber: "91V123000",
		Manufacturer:   "Honda",
		ReportedDate:   "01/05/1991",
		Component:      "SEAT BELTS",
		Summary:        "Belt may not latch.",
		Consequence:    "Injury risk.",
		Remedy:         "Dealers will replace.",
		Notes:          "Owners may contact Honda.",
	}, result.Recalls[0])
	assert.EqualValues(t, 1, fake.decodes.Load())
}

func TestGetRecallsByMakeModelYear(t *testing.T) {
	fake := newFakeNHTSA(t)
	client := fake.client(nil)

	result, err := client.GetRecalls(context.Background(), RecallQuery{Make: "TOYOTA", Model: "Camry", Year: "2020"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.False(t, result.HasOpenRecalls)
	assert.NotNil(t, result.Recalls)

	_, err = client.GetRecalls(context.Background(), RecallQuery{Make: "TOYOTA"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = client.GetRecalls(context.Background(), RecallQuery{Make: "TOYOTA", Model: "Camry", Year: "20x0"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	assert.EqualValues(t, 0, fake.decodes.Load())
	assert.EqualValues(t, 1, fake.recalls.Load())
}
