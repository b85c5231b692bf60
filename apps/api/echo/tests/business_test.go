package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	echoapi "github.com/trezcool/campusdeals/apps/api/echo"
	"github.com/trezcool/campusdeals/core/billing"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/stats"
	"github.com/trezcool/campusdeals/core/ticket"
	"github.com/trezcool/campusdeals/core/user"
	emailsvc "github.com/trezcool/campusdeals/services/email"
	exportsvc "github.com/trezcool/campusdeals/services/export"
	"github.com/trezcool/campusdeals/tests"
)

func registrationBody(email string, locations string) []byte {
	return []byte(fmt.Sprintf(`{
		"owner": {"name": "Leila Ben Ali", "email": %q, "password": %q, "password_confirm": %q},
		"business": {"name": "  Cafe Leila ", "category": "CAFE", "city": "Tunis", "locations": %s}
	}`, email, testPassword, testPassword, locations))
}

func Test_businessApi_register(t *testing.T) {
	a, srv := setup(t)

	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)
	locations := fmt.Sprintf(`[{"label": "Main", "city": "Tunis", "lat": %f, "lng": %f}]`, tunisLat, tunisLng)

	runHTTPTests(t, srv, []httpTest{
		{name: "location required", method: http.MethodPost, path: "/v1/businesses/register",
			body: registrationBody("leila@test.tn", `[]`), wantCode: http.StatusBadRequest},
		{name: "invalid location", method: http.MethodPost, path: "/v1/businesses/register",
			body: registrationBody("leila@test.tn", `[{"city": "Tunis", "lat": 120, "lng": 10}]`), wantCode: http.StatusBadRequest},
	})

	rec := do(srv, http.MethodPost, "/v1/businesses/register", "", registrationBody("Leila@Test.tn", locations))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg echoapi.BusinessRegistrationResponse
	decode(t, rec, &reg)
	assert.Equal(t, "leila@test.tn", reg.User.Email)
	assert.Equal(t, []string{user.RoleBusiness}, reg.User.Roles)
	assert.Equal(t, "Cafe Leila", reg.Business.Name)
	assert.Equal(t, "cafe", reg.Business.Category)
	assert.Equal(t, business.StatusPending, reg.Business.Status)
	assert.Equal(t, reg.User.ID, reg.Business.OwnerID)
	require.Len(t, reg.Business.Locations, 1)

	rec = do(srv, http.MethodPost, "/v1/businesses/register", "", registrationBody("leila@test.tn", locations))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	ownerToken := getToken(t, reg.User)
	bizPath := "/v1/businesses/" + reg.Business.ID
	runHTTPTests(t, srv, []httpTest{
		{name: "pending business cannot publish deals", method: http.MethodPost, path: bizPath + "/deals", token: ownerToken,
			body:     []byte(`{"title": "Coffee -20%", "category": "cafe"}`),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: business.ErrNotApproved.Error()})},
		{name: "pending business is not listed", path: fmt.Sprintf("/v1/businesses/nearby?lat=%f&lng=%f", tunisLat, tunisLng),
			wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "owners cannot moderate", method: http.MethodPut, path: bizPath + "/status", token: ownerToken,
			body: []byte(`{"status": "approved"}`), wantCode: http.StatusForbidden},
		{name: "invalid status", method: http.MethodPut, path: bizPath + "/status", token: adminToken,
			body: []byte(`{"status": "closed"}`), wantCode: http.StatusBadRequest},
	})

	emailsvc.ResetSentMessages()
	rec = do(srv, http.MethodPut, bizPath+"/status", adminToken, []byte(`{"status": "approved"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var biz business.Business
	decode(t, rec, &biz)
	assert.Equal(t, business.StatusApproved, biz.Status)
	mails := emailsvc.SentMessages()
	require.Len(t, mails, 1)
	assert.Equal(t, "Your business is approved", mails[0].Subject)
	assert.Equal(t, "leila@test.tn", mails[0].To[0].Address)

	rec = do(srv, http.MethodPost, bizPath+"/deals", ownerToken, []byte(`{"title": "Coffee -20%", "category": "cafe"}`))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodGet, "/v1/businesses/mine", ownerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine []business.Business
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, biz.ID, mine[0].ID)
}

func Test_businessApi_manage(t *testing.T) {
	a, srv := setup(t)

	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	other := testutil.CreateUser(t, a.UserRepo, "Other", "other@test.tn", "", []string{user.RoleBusiness}, true)
	ownerToken := getToken(t, owner)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	bizPath := "/v1/businesses/" + biz.ID

	runHTTPTests(t, srv, []httpTest{
		{name: "other owner", path: bizPath, token: getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: business.ErrNotOwner.Error()})},
		{name: "unknown business", path: "/v1/businesses/nope", token: ownerToken, wantCode: http.StatusNotFound},
		{name: "last location is kept", method: http.MethodDelete, path: bizPath + "/locations/" + biz.Locations[0].ID, token: ownerToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: business.ErrLastLocation.Error()})},
		{name: "unknown category", method: http.MethodPut, path: bizPath, token: ownerToken,
			body: []byte(`{"category": "weapons"}`), wantCode: http.StatusBadRequest},
	})

	rec := do(srv, http.MethodPut, bizPath, ownerToken, []byte(`{"description": "Best coffee in town"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated business.Business
	decode(t, rec, &updated)
	assert.Equal(t, "Center Cafe", updated.Name)
	assert.Equal(t, "Best coffee in town", updated.Description)

	rec = do(srv, http.MethodPost, bizPath+"/locations", ownerToken,
		[]byte(fmt.Sprintf(`{"label": "Lac", "city": "Tunis", "lat": %f, "lng": 10.2300}`, tunisLat)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loc business.Location
	decode(t, rec, &loc)
	assert.Equal(t, biz.ID, loc.BusinessID)

	rec = do(srv, http.MethodDelete, bizPath+"/locations/"+biz.Locations[0].ID, ownerToken)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	got, err := a.BusinessSvc.Get(ctxBg(), biz.ID)
	require.NoError(t, err)
	require.Len(t, got.Locations, 1)
	assert.Equal(t, loc.ID, got.Locations[0].ID)
}

func Test_businessApi_query(t *testing.T) {
	a, srv := setup(t)

	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	cafe := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	gym := testutil.CreateBusiness(t, a, owner, "Near Gym", "sport", "Ariana", tunisLat, tunisLng)

	runHTTPTests(t, srv, []httpTest{
		{name: "anonymous", path: "/v1/businesses", wantCode: http.StatusUnauthorized},
		{name: "business owner", path: "/v1/businesses", token: getToken(t, owner), wantCode: http.StatusForbidden},
	})

	rec := do(srv, http.MethodGet, "/v1/businesses", getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bizs []business.Business
	decode(t, rec, &bizs)
	ids := make([]string, 0, len(bizs))
	for _, b := range bizs {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{cafe.ID, gym.ID}, ids)

	rec = do(srv, http.MethodGet, "/v1/businesses/"+cafe.ID, getToken(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_businessApi_nearbyAndMap(t *testing.T) {
	a, srv := setup(t)

	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	center := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	near := testutil.CreateBusiness(t, a, owner, "Near Gym", "sport", "Ariana", nearLat, tunisLng)
	testutil.CreateBusiness(t, a, owner, "Far Books", "education", "Bizerte", farLat, tunisLng)

	rec := do(srv, http.MethodGet, fmt.Sprintf("/v1/businesses/nearby?lat=%f&lng=%f", nearLat, tunisLng), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var nearby []business.NearbyBusiness
	decode(t, rec, &nearby)
	require.Len(t, nearby, 2)
	assert.Equal(t, near.ID, nearby[0].ID)
	assert.Equal(t, center.ID, nearby[1].ID)
	assert.InDelta(t, 5, nearby[1].DistanceKm, 0.1)

	type featureCollection struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}

	rec = do(srv, http.MethodGet, fmt.Sprintf("/v1/businesses/map?lat=%f&lng=%f", tunisLat, tunisLng), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, exportsvc.GeoJSONContentType, rec.Header().Get("Content-Type"))
	var fc featureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	first := fc.Features[0]
	assert.Equal(t, center.Locations[0].ID, first.ID)
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{tunisLng, tunisLat}, first.Geometry.Coordinates)
	assert.Equal(t, "Center Cafe", first.Properties["name"])
	assert.Equal(t, center.ID, first.Properties["business_id"])

	// without coordinates, every approved business
	rec = do(srv, http.MethodGet, "/v1/businesses/map", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Len(t, fc.Features, 3)

	rec = do(srv, http.MethodGet, "/v1/businesses/map?lat=abc&lng=10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func Test_businessApi_redemptions(t *testing.T) {
	a, srv := setup(t)

	uni := testutil.CreateUniversity(t, a.UniversityRepo, "University of Tunis", "Tunis", tunisLat, tunisLng)
	amina, _ := testutil.CreateStudent(t, a, "Amina", "amina@test.tn", uni)
	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	ownerToken := getToken(t, owner)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	d := testutil.CreateDeal(t, a, biz, "Coffee -20%", "cafe", 0)
	testutil.CreateDeal(t, a, biz, "Croissant", "cafe", 0)

	tkt, err := a.TicketSvc.Claim(ctxBg(), amina, d.ID)
	require.NoError(t, err)
	_, err = a.TicketSvc.Redeem(ctxBg(), amina, ticket.RedeemRequest{Code: tkt.Code, Lat: tunisLat, Lng: tunisLng})
	require.NoError(t, err)

	bizPath := "/v1/businesses/" + biz.ID
	rec := do(srv, http.MethodGet, bizPath+"/redemptions", ownerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rows []ticket.RedemptionRow
	decode(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, tkt.Code, rows[0].Code)
	assert.Equal(t, "Coffee -20%", rows[0].DealTitle)
	assert.Equal(t, "Amina", rows[0].StudentName)

	runHTTPTests(t, srv, []httpTest{
		{name: "invalid from", path: bizPath + "/redemptions?from=yesterday", token: ownerToken, wantCode: http.StatusBadRequest},
		{name: "none in range", path: bizPath + "/redemptions?from=2000-01-01T00:00:00Z&to=2000-01-02T00:00:00Z",
			token: ownerToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})

	rec = do(srv, http.MethodGet, bizPath+"/redemptions/export", ownerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, exportsvc.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))

	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Code", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, tkt.Code, sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "Amina", sheet.Rows[1].Cells[4].String())

	rec = do(srv, http.MethodGet, bizPath+"/dashboard", ownerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash stats.BusinessDashboard
	decode(t, rec, &dash)
	assert.Equal(t, biz.ID, dash.BusinessID)
	require.Len(t, dash.Deals, 2)
	assert.Equal(t, d.ID, dash.Deals[0].DealID)
	assert.Equal(t, 1, dash.Deals[0].Claims)
	assert.Equal(t, 1, dash.Deals[0].Redemptions)
	assert.Equal(t, 0, dash.Deals[1].Claims)
	assert.Equal(t, 1, dash.TotalClaims)
	assert.Equal(t, 1, dash.TotalRedemptions)
}

func Test_businessApi_billing(t *testing.T) {
	a, srv := setup(t)

	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	ownerToken := getToken(t, owner)
	subscribed := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	biz, err := a.BusinessSvc.SetSubscription(ctxBg(), testutil.CreateBusiness(t, a, owner, "Lac Cafe", "cafe", "Tunis", tunisLat, 10.23),
		business.Subscription{Status: business.SubscriptionNone})
	require.NoError(t, err)

	rec := do(srv, http.MethodPost, "/v1/businesses/"+subscribed.ID+"/checkout", ownerToken)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: billing.ErrAlreadySubscribed.Error()})), rec.Body.String())

	rec = do(srv, http.MethodPost, "/v1/businesses/"+biz.ID+"/checkout", ownerToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess billing.CheckoutSession
	decode(t, rec, &sess)
	assert.Equal(t, "https://checkout.test/cs_test", sess.URL)
	require.Len(t, a.Billing.Checkouts, 1)
	assert.Equal(t, biz.ID, a.Billing.Checkouts[0].BusinessID)
	assert.Equal(t, owner.Email, a.Billing.Checkouts[0].CustomerEmail)

	a.Billing.Signature = "t=1,v1=good"
	a.Billing.Event = billing.Event{
		ID:             "evt_1",
		Type:           billing.EventCheckoutCompleted,
		BusinessID:     biz.ID,
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	}
	webhook := func(signature string) int {
		req, rec := newRequest(http.MethodPost, "/v1/billing/webhook", []byte(`{"id": "evt_1"}`))
		if signature != "" {
			req.Header.Set("Stripe-Signature", signature)
		}
		srv.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, webhook(""))
	assert.Equal(t, http.StatusBadRequest, webhook("t=1,v1=forged"))
	got, err := a.BusinessSvc.Get(ctxBg(), biz.ID)
	require.NoError(t, err)
	assert.Equal(t, business.SubscriptionNone, got.SubscriptionStatus)

	require.Equal(t, http.StatusOK, webhook("t=1,v1=good"))
	got, err = a.BusinessSvc.Get(ctxBg(), biz.ID)
	require.NoError(t, err)
	assert.Equal(t, business.SubscriptionActive, got.SubscriptionStatus)
	assert.Equal(t, "cus_1", got.StripeCustomerID)

	// cancellation through the customer id
	a.Billing.Event = billing.Event{ID: "evt_2", Type: billing.EventSubscriptionDeleted, CustomerID: "cus_1", ProviderStatus: "canceled"}
	require.Equal(t, http.StatusOK, webhook("t=1,v1=good"))
	got, err = a.BusinessSvc.Get(ctxBg(), biz.ID)
	require.NoError(t, err)
	assert.Equal(t, business.SubscriptionCanceled, got.SubscriptionStatus)

	rec = do(srv, http.MethodPost, "/v1/businesses/"+biz.ID+"/push-requests", ownerToken, pushRequestBody("any", "Coffee"))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}

func Test_statsApi_admin(t *testing.T) {
	a, srv := setup(t)

	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	testutil.CreateDeal(t, a, biz, "Coffee -20%", "cafe", 0)
	inactive := testutil.CreateDeal(t, a, biz, "Old", "cafe", 0)
	off := false
	_, err := a.DealSvc.Update(ctxBg(), inactive, deal.UpdateDeal{Title: inactive.Title, Category: inactive.Category, IsActive: &off})
	require.NoError(t, err)

	rec := do(srv, http.MethodGet, "/v1/admin/dashboard", getToken(t, owner))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodGet, "/v1/admin/dashboard", getToken(t, admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dash stats.AdminDashboard
	decode(t, rec, &dash)
	assert.Equal(t, 1, dash.UsersByRole[user.RoleAdmin])
	assert.Equal(t, 1, dash.UsersByRole[user.RoleBusiness])
	assert.Equal(t, map[string]int{string(business.StatusApproved): 1}, dash.BusinessesByStatus)
	assert.Equal(t, 1, dash.ActiveDeals)
	assert.Zero(t, dash.TicketsClaimed)
}
