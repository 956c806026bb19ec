package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/yukikurage/busybee/internal/models"
)

func (s *RouterTestSuite) TestRegister_DuplicateRejected() {
	w := s.postJSON("/register", map[string]string{"username": "Ann", "password": testPassword}, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.JSONEq(`{"redirectTo":"main/main.html"}`, w.Body.String())

	w = s.postJSON("/register", map[string]string{"username": "Ann", "password": testPassword}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("username: already exists", s.errorBody(w))

	user, ok := s.users.FindByUsername("Ann")
	s.Require().True(ok)
	s.Equal("TRIAL", string(user.Roles[0]))
}

func (s *RouterTestSuite) TestRegister_Validation() {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing password", `{"username":"Ann"}`, "password: required"},
		{"missing username", `{"password":"hunter2A!"}`, "username: required"},
		{"short password", `{"username":"Ann","password":"short"}`, "password: length must be between 8 and 32"},
		{"bad username", `{"username":"1ann","password":"hunter2A!"}`, "username: contains invalid characters"},
		{"wrong type", `{"username":7,"password":"hunter2A!"}`, "username: invalid"},
		{"malformed", `{"username":`, "request: malformed"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := s.serve(req, nil)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.want, s.errorBody(w))
		})
	}
	s.Empty(s.users.All())
}

func (s *RouterTestSuite) TestLogin_RedirectsAndSetsSession() {
	s.createUser("Ann")

	form := url.Values{"username": {"Ann"}, "password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := s.serve(req, nil)

	s.Equal(http.StatusFound, w.Code)
	s.Equal("/main/main.html", w.Header().Get("Location"))
	s.NotEmpty(w.Result().Cookies())
}

func (s *RouterTestSuite) TestLogin_BadCredentials() {
	s.createUser("Ann")

	for _, creds := range []url.Values{
		{"username": {"Ann"}, "password": {"wrong-pass"}},
		{"username": {"Nobody"}, "password": {testPassword}},
		{},
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(creds.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := s.serve(req, nil)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.Empty(w.Body.String())
	}
}

func (s *RouterTestSuite) TestLogout_ClearsSession() {
	s.createUser("Ann")
	cookies := s.login("Ann")

	s.Equal(http.StatusOK, s.get("/tasks", cookies).Code)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	w := s.serve(req, cookies)
	s.Equal(http.StatusFound, w.Code)
	s.Equal("/", w.Header().Get("Location"))

	s.Equal(http.StatusUnauthorized, s.get("/tasks", w.Result().Cookies()).Code)
}

func (s *RouterTestSuite) TestProtectedRoutesRequireSession() {
	for _, path := range []string{"/tasks", "/image?file=a.png", "/attachment?file=a.pdf"} {
		w := s.get(path, nil)
		s.Equal(http.StatusUnauthorized, w.Code, path)
		s.Empty(w.Body.String(), path)
		s.Empty(w.Header().Get("Location"), path)
	}
	w := s.postJSON("/create", map[string]string{}, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestDisabledAccountSessionRejected() {
	s.createUser("Ann")
	cookies := s.login("Ann")

	user, _ := s.users.FindByUsername("Ann")
	user.Enabled = false
	s.users.Load([]models.User{user})

	s.Equal(http.StatusUnauthorized, s.get("/tasks", cookies).Code)
}

func (s *RouterTestSuite) TestHealthAndSecurityHeaders() {
	w := s.get("/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
	s.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
	s.Equal("DENY", w.Header().Get("X-Frame-Options"))
	s.Equal("no-referrer", w.Header().Get("Referrer-Policy"))
}
