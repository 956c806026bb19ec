package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/yukikurage/busybee/internal/dto"
	"github.com/yukikurage/busybee/internal/models"
)

func (s *RouterTestSuite) TestCreate_ResponsibleMustExist() {
	s.createUser("Ann", models.RoleTrial)
	ann := s.login("Ann")
	body := map[string]any{"name": "Buy milk", "desc": "At dawn", "responsibilityOf": []string{"Ben"}}

	w := s.postJSON("/create", body, ann)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("responsibilityOf[0]: user does not exist", s.errorBody(w))

	s.createUser("Ben")
	w = s.postJSON("/create", body, ann)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp dto.CreateResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))

	body["name"] = "buy MILK"
	w = s.postJSON("/create", body, ann)
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("name: task name already exists", s.errorBody(w))

	task, ok := s.tasks.Find(resp.TaskID)
	s.Require().True(ok)
	s.Equal("Ann", task.CreatedBy)
	s.Equal("At dawn", task.Description)
}

func (s *RouterTestSuite) TestCreate_RequestValidation() {
	s.createUser("Yariv", models.RoleCreator)
	yariv := s.login("Yariv")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, "request: required"},
		{"no name", `{"desc":"d","responsibilityOf":[]}`, "name: required"},
		{"no desc", `{"name":"n","responsibilityOf":[]}`, "desc: required"},
		{"no responsibility", `{"name":"n","desc":"d"}`, "responsibilityOf: required"},
		{"null responsible", `{"name":"n","desc":"d","responsibilityOf":[null]}`, "responsibilityOf[0]: required"},
		{"malformed responsible", `{"name":"n","desc":"d","responsibilityOf":["Ben","1bad"]}`, "responsibilityOf[1]: contains invalid characters"},
		{"non-string responsible", `{"name":"n","desc":"d","responsibilityOf":[7]}`, "responsibilityOf[0]: invalid"},
		{"responsibility not a list", `{"name":"n","desc":"d","responsibilityOf":"Ben"}`, "responsibilityOf: invalid"},
		{"time without date", `{"name":"n","desc":"d","responsibilityOf":[],"dueTime":"10:00"}`, "dueTime: cannot be set without dueDate"},
		{"past date", `{"name":"n","desc":"d","responsibilityOf":[],"dueDate":"2000-01-01"}`, "dueDate: cannot be in the past"},
		{"bad date", `{"name":"n","desc":"d","responsibilityOf":[],"dueDate":"tomorrow"}`, "dueDate: invalid"},
		{"malformed", `{"name":`, "request: malformed"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := s.serve(req, yariv)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.want, s.errorBody(w))
		})
	}
	s.Empty(s.tasks.All())
}

func (s *RouterTestSuite) TestCreate_SanitizesDescription() {
	s.createUser("Yariv", models.RoleCreator)
	yariv := s.login("Yariv")

	w := s.postJSON("/create", map[string]any{
		"name":             "Sanitized",
		"desc":             "line one\n<img src=x onerror=alert(1)><script>alert(2)</script><b>bold</b>",
		"responsibilityOf": []string{},
	}, yariv)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	tasks := s.tasks.All()
	s.Require().Len(tasks, 1)
	desc := strings.ToLower(tasks[0].Description)
	s.NotContains(desc, "<script")
	s.NotContains(desc, "onerror")
	s.Contains(desc, "<b>bold</b>")
	s.Contains(desc, "line one<br")
}

func (s *RouterTestSuite) TestCreate_RoleAndTrialGate() {
	s.createUser("Nobody")
	s.createUser("Or", models.RoleTrial)

	w := s.postJSON("/create", map[string]any{"name": "x", "desc": "d", "responsibilityOf": []string{}}, s.login("Nobody"))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("access denied", s.errorBody(w))

	or := s.login("Or")
	s.createTask(or, "First")
	w = s.postJSON("/create", map[string]any{"name": "Second", "desc": "d", "responsibilityOf": []string{}}, or)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterTestSuite) TestMarkDone_Idempotent() {
	s.createUser("Ann", models.RoleTrial)
	ann := s.login("Ann")
	id := s.createTask(ann, "Buy milk")

	w := s.postJSON("/done", map[string]string{"taskid": id}, ann)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":true}`, w.Body.String())

	w = s.postJSON("/done", map[string]string{"taskid": id}, ann)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":false}`, w.Body.String())
}

func (s *RouterTestSuite) TestMarkDone_Authorization() {
	s.createUser("Yariv", models.RoleCreator)
	s.createUser("Ben")
	s.createUser("Eve")
	s.createUser("Dor", models.RoleAdmin)
	yariv := s.login("Yariv")
	first := s.createTask(yariv, "First", "Ben")
	second := s.createTask(yariv, "Second")

	w := s.postJSON("/done", map[string]string{"taskid": first}, s.login("Eve"))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.postJSON("/done", map[string]string{"taskid": first}, s.login("Ben"))
	s.JSONEq(`{"success":true}`, w.Body.String())

	w = s.postJSON("/done", map[string]string{"taskid": second}, s.login("Dor"))
	s.JSONEq(`{"success":true}`, w.Body.String())

	w = s.postJSON("/done", map[string]string{"taskid": "3f1c9d1e-8a53-4c55-9c1b-0c7f0a8e2b11"}, yariv)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("task: not found", s.errorBody(w))

	w = s.postJSON("/done", map[string]string{}, yariv)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("taskid: required", s.errorBody(w))

	w = s.postJSON("/done", map[string]string{"taskid": "not-a-uuid"}, yariv)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("request: malformed", s.errorBody(w))
}

func (s *RouterTestSuite) TestListTasks_FilteredAndPaged() {
	s.createUser("Yariv", models.RoleCreator)
	s.createUser("Ben")
	s.createUser("Eve")
	s.createUser("Dor", models.RoleAdmin)
	yariv := s.login("Yariv")
	s.createTask(yariv, "Shared", "Ben")
	s.createTask(yariv, "Private")
	s.createTask(yariv, "Third")

	list := func(path, user string) []dto.TaskOut {
		w := s.get(path, s.login(user))
		s.Require().Equal(http.StatusOK, w.Code)
		var out []dto.TaskOut
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	s.Len(list("/tasks", "Yariv"), 3)
	ben := list("/tasks", "Ben")
	s.Require().Len(ben, 1)
	s.Equal("Shared", ben[0].Name)
	s.Equal([]string{"Ben"}, ben[0].ResponsibilityOf)
	s.NotNil(ben[0].Comments)
	s.Empty(list("/tasks", "Eve"))
	s.Len(list("/tasks", "Dor"), 3)

	page := list("/tasks?page=2&limit=2", "Yariv")
	s.Require().Len(page, 1)
	s.Equal("Third", page[0].Name)
}
