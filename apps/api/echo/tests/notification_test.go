package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core/notification"
	"github.com/trezcool/campusdeals/core/user"
	emailsvc "github.com/trezcool/campusdeals/services/email"
	pushsvc "github.com/trezcool/campusdeals/services/push"
	"github.com/trezcool/campusdeals/tests"
)

func pushRequestBody(uniID, title string) []byte {
	return []byte(fmt.Sprintf(`{"university_id": %q, "title": %q, "body": "Show this notification at the counter"}`, uniID, title))
}

func Test_notificationApi_pushRequest(t *testing.T) {
	a, srv := setup(t)

	tunis := testutil.CreateUniversity(t, a.UniversityRepo, "University of Tunis", "Tunis", tunisLat, tunisLng)
	carthage := testutil.CreateUniversity(t, a.UniversityRepo, "University of Carthage", "Carthage", 36.8529, 10.3233) // ~13.6 km
	sousse := testutil.CreateUniversity(t, a.UniversityRepo, "University of Sousse", "Sousse", 35.8256, 10.6084)

	amina, _ := testutil.CreateStudent(t, a, "Amina", "amina@test.tn", tunis)
	karim, _ := testutil.CreateStudent(t, a, "Karim", "karim@test.tn", carthage)
	sami, _ := testutil.CreateStudent(t, a, "Sami", "sami@test.tn", sousse)
	gone, _ := testutil.CreateStudent(t, a, "Gone", "gone@test.tn", tunis)

	_, err := a.UserSvc.SetPushToken(ctxBg(), amina, "ExponentPushToken[amina]")
	require.NoError(t, err)
	_, err = a.UserSvc.SetPushToken(ctxBg(), sami, "ExponentPushToken[sami]")
	require.NoError(t, err)
	off := false
	_, err = a.UserSvc.Update(ctxBg(), gone, user.UpdateUser{Name: gone.Name, Email: gone.Email, IsActive: &off})
	require.NoError(t, err)

	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)
	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	ownerToken := getToken(t, owner)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)
	submitPath := "/v1/businesses/" + biz.ID + "/push-requests"

	runHTTPTests(t, srv, []httpTest{
		{name: "students cannot submit", method: http.MethodPost, path: submitPath, token: getToken(t, karim),
			body: pushRequestBody(tunis.ID, "Coffee -20%"), wantCode: http.StatusForbidden},
		{name: "title required", method: http.MethodPost, path: submitPath, token: ownerToken,
			body: pushRequestBody(tunis.ID, ""), wantCode: http.StatusBadRequest},
		{name: "unknown university", method: http.MethodPost, path: submitPath, token: ownerToken,
			body: pushRequestBody("nope", "Coffee -20%"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"university_id": "university not found"})},
	})

	rec := do(srv, http.MethodPost, submitPath, ownerToken, pushRequestBody(tunis.ID, "Coffee -20%"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pr notification.PushRequest
	decode(t, rec, &pr)
	assert.Equal(t, notification.StatusPending, pr.Status)

	rec = do(srv, http.MethodGet, "/v1/push-requests?status=PENDING", adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pending []notification.PushRequest
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, pr.ID, pending[0].ID)

	reviewPath := "/v1/push-requests/" + pr.ID + "/review"
	runHTTPTests(t, srv, []httpTest{
		{name: "admin only", method: http.MethodPost, path: reviewPath, token: ownerToken,
			body: []byte(`{"status": "approved"}`), wantCode: http.StatusForbidden},
		{name: "invalid status", method: http.MethodPost, path: reviewPath, token: adminToken,
			body: []byte(`{"status": "sent"}`), wantCode: http.StatusBadRequest},
	})

	emailsvc.ResetSentMessages()
	rec = do(srv, http.MethodPost, reviewPath, adminToken, []byte(`{"status": "approved", "note": "ok"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &pr)
	assert.Equal(t, notification.StatusSent, pr.Status)
	assert.Equal(t, admin.ID, pr.ReviewedBy)
	// Tunis & Carthage students; Sousse is too far and Gone is inactive
	assert.Equal(t, 2, pr.RecipientCount)

	pushed := pushsvc.SentMessages()
	require.Len(t, pushed, 1)
	assert.Equal(t, "ExponentPushToken[amina]", pushed[0].To)
	assert.Equal(t, "Coffee -20%", pushed[0].Title)
	assert.Equal(t, pr.ID, pushed[0].Data["push_request_id"])

	mails := emailsvc.SentMessages()
	require.Len(t, mails, 1)
	assert.Equal(t, owner.Email, mails[0].To[0].Address)

	rec = do(srv, http.MethodPost, reviewPath, adminToken, []byte(`{"status": "rejected"}`))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.JSONEq(t, string(marchallObj(t, httpErr{Error: notification.ErrAlreadyReviewed.Error()})), rec.Body.String())

	for _, tc := range []struct {
		usr  user.User
		want int
	}{{amina, 1}, {karim, 1}, {sami, 0}} {
		rec = do(srv, http.MethodGet, "/v1/notifications", getToken(t, tc.usr))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		assert.Len(t, notifs, tc.want, tc.usr.Name)
	}
}

func Test_notificationApi_reject(t *testing.T) {
	a, srv := setup(t)

	tunis := testutil.CreateUniversity(t, a.UniversityRepo, "University of Tunis", "Tunis", tunisLat, tunisLng)
	amina, _ := testutil.CreateStudent(t, a, "Amina", "amina@test.tn", tunis)
	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, a.UserRepo, "Owner", "owner@test.tn", "", []string{user.RoleBusiness}, true)
	biz := testutil.CreateBusiness(t, a, owner, "Center Cafe", "cafe", "Tunis", tunisLat, tunisLng)

	rec := do(srv, http.MethodPost, "/v1/businesses/"+biz.ID+"/push-requests", getToken(t, owner), pushRequestBody(tunis.ID, "Spam"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pr notification.PushRequest
	decode(t, rec, &pr)

	rec = do(srv, http.MethodPost, "/v1/push-requests/"+pr.ID+"/review", getToken(t, admin), []byte(`{"status": "rejected", "note": " too vague "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &pr)
	assert.Equal(t, notification.StatusRejected, pr.Status)
	assert.Equal(t, "too vague", pr.ReviewNote)
	assert.Zero(t, pr.RecipientCount)
	assert.Empty(t, pushsvc.SentMessages())

	rec = do(srv, http.MethodGet, "/v1/notifications", getToken(t, amina))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, "[]", rec.Body.String())
}

func Test_notificationApi_read(t *testing.T) {
	a, srv := setup(t)

	tunis := testutil.CreateUniversity(t, a.UniversityRepo, "University of Tunis", "Tunis", tunisLat, tunisLng)
	amina, _ := testutil.CreateStudent(t, a, "Amina", "amina@test.tn", tunis)
	karim, _ := testutil.CreateStudent(t, a, "Karim", "karim@test.tn", tunis)
	aminaToken := getToken(t, amina)

	require.NoError(t, a.NotifRepo.CreateNotifications(ctxBg(), []notification.Notification{
		{UserID: amina.ID, Title: "First", Body: "1", CreatedAt: time.Now().UTC().Add(-2 * time.Minute)},
		{UserID: amina.ID, Title: "Second", Body: "2", CreatedAt: time.Now().UTC().Add(-time.Minute)},
	}))

	list := func(t *testing.T, query string) []notification.Notification {
		rec := do(srv, http.MethodGet, "/v1/notifications"+query, aminaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		return notifs
	}

	notifs := list(t, "")
	require.Len(t, notifs, 2)
	assert.Equal(t, "Second", notifs[0].Title)
	assert.False(t, notifs[0].IsRead())

	readPath := "/v1/notifications/" + notifs[1].ID + "/read"
	rec := do(srv, http.MethodPost, readPath, getToken(t, karim))
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodPost, readPath, aminaToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var read notification.Notification
	decode(t, rec, &read)
	assert.True(t, read.IsRead())

	unread := list(t, "?unread=true")
	require.Len(t, unread, 1)
	assert.Equal(t, "Second", unread[0].Title)

	rec = do(srv, http.MethodPost, "/v1/notifications/read-all", aminaToken)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, list(t, "?unread=true"))
	assert.Len(t, list(t, ""), 2)
}
