package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core/university"
	"github.com/trezcool/campusdeals/core/user"
	"github.com/trezcool/campusdeals/tests"
)

func Test_universityApi(t *testing.T) {
	a, srv := setup(t)

	admin := testutil.CreateUser(t, a.UserRepo, "Admin", "admin@test.tn", "", []string{user.RoleAdmin}, true)
	token := getToken(t, admin)
	sousse := testutil.CreateUniversity(t, a.UniversityRepo, "University of Sousse", "Sousse", 35.8256, 10.6084)

	runHTTPTests(t, srv, []httpTest{
		{name: "admin only", method: http.MethodPost, path: "/v1/universities",
			body: []byte(`{"name": "University of Tunis", "city": "Tunis", "lat": 36.8, "lng": 10.18}`), wantCode: http.StatusUnauthorized},
		{name: "invalid coordinates", method: http.MethodPost, path: "/v1/universities", token: token,
			body: []byte(`{"name": "University of Tunis", "city": "Tunis", "lat": 36.8, "lng": 200}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"lng": "must be a valid longitude"})},
		{name: "duplicate name", method: http.MethodPost, path: "/v1/universities", token: token,
			body: []byte(`{"name": "University of Sousse", "city": "Sousse", "lat": 35.8, "lng": 10.6}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": university.ErrNameExists.Error()})},
	})

	rec := do(srv, http.MethodPost, "/v1/universities", token,
		[]byte(`{"name": " University of Tunis ", "city": "Tunis", "lat": 36.8065, "lng": 10.1815}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tunis university.University
	decode(t, rec, &tunis)
	assert.Equal(t, "University of Tunis", tunis.Name)

	list := func(t *testing.T, query string) []string {
		rec := do(srv, http.MethodGet, "/v1/universities"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var unis []university.University
		decode(t, rec, &unis)
		names := make([]string, 0, len(unis))
		for _, u := range unis {
			names = append(names, u.Name)
		}
		return names
	}
	assert.Equal(t, []string{"University of Sousse", "University of Tunis"}, list(t, ""))
	assert.Equal(t, []string{"University of Tunis"}, list(t, "?search=TUN"))
	assert.Equal(t, []string{"University of Sousse"}, list(t, "?city=sousse"))

	rec = do(srv, http.MethodPut, "/v1/universities/"+sousse.ID, token,
		[]byte(`{"name": "University of Sousse", "city": "Sousse", "lat": 35.83, "lng": 10.61}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(srv, http.MethodDelete, "/v1/universities/"+sousse.ID, token)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = do(srv, http.MethodGet, "/v1/universities/"+sousse.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}
