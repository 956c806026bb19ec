package handlers

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/models"
)

func (s *RouterTestSuite) taskComments(id string) []models.Comment {
	task, ok := s.tasks.Find(uuid.MustParse(id))
	s.Require().True(ok)
	return task.Comments
}

func (s *RouterTestSuite) TestComment_ImageUploadAndServe() {
	s.createUser("Ann", models.RoleTrial)
	s.createUser("Eve")
	ann := s.login("Ann")
	id := s.createTask(ann, "Buy milk")

	w := s.postComment(ann, map[string]any{"taskid": id, "text": "receipt"},
		&filePart{name: "pic.png", contentType: "image/png", data: pngBytes})
	s.commentID(w)

	comments := s.taskComments(id)
	s.Require().Len(comments, 1)
	image := comments[0].Image
	s.Require().NotEmpty(image)
	s.Empty(comments[0].Attachment)
	s.Equal("receipt", comments[0].Text)
	s.Equal("Ann", comments[0].CreatedBy)

	w = s.get("/image?file="+image, ann)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(pngBytes, w.Body.Bytes())
	s.Equal("image/png", w.Header().Get("Content-Type"))
	s.Equal("default-src 'none'; sandbox", w.Header().Get("Content-Security-Policy"))
	s.Empty(w.Header().Get("Content-Disposition"))

	w = s.get("/image?file="+image, s.login("Eve"))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.get("/attachment?file="+image, ann)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterTestSuite) TestComment_PDFAttachment() {
	s.createUser("Yariv", models.RoleCreator)
	s.createUser("Ben")
	yariv := s.login("Yariv")
	id := s.createTask(yariv, "Paperwork", "Ben")

	ben := s.login("Ben")
	s.commentID(s.postComment(ben, map[string]any{"taskid": id, "text": "signed"},
		&filePart{name: "form.pdf", contentType: "application/pdf", data: pdfBytes}))

	comments := s.taskComments(id)
	s.Require().Len(comments, 1)
	attachment := comments[0].Attachment
	s.Require().NotEmpty(attachment)
	s.Empty(comments[0].Image)

	w := s.get("/attachment?file="+attachment, yariv)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(pdfBytes, w.Body.Bytes())
	s.Equal("application/pdf", w.Header().Get("Content-Type"))
	s.Equal(`attachment; filename="`+filepath.Base(attachment)+`"`, w.Header().Get("Content-Disposition"))
}

func (s *RouterTestSuite) TestComment_MismatchedImageRejected() {
	s.createUser("Ann", models.RoleTrial)
	ann := s.login("Ann")
	id := s.createTask(ann, "Buy milk")

	w := s.postComment(ann, map[string]any{"taskid": id, "text": "sneaky"},
		&filePart{name: "pic.png", contentType: "image/png", data: jpegBytes})
	s.Equal(http.StatusUnsupportedMediaType, w.Code)
	s.Equal("upload: rejected", s.errorBody(w))
	s.Empty(s.taskComments(id))

	entries, err := os.ReadDir(filepath.Join(s.box.Root(), "Ann"))
	if err == nil {
		s.Empty(entries)
	}
}

func (s *RouterTestSuite) TestComment_PrivateURLBlocked() {
	s.createUser("Ann", models.RoleTrial)
	ann := s.login("Ann")
	id := s.createTask(ann, "Buy milk")

	w := s.postComment(ann, map[string]any{"taskid": id, "text": "link", "imageUrl": "http://127.0.0.1/x.png"}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("imageUrl: blocked host address", s.errorBody(w))
	s.Empty(s.taskComments(id))
}

func (s *RouterTestSuite) TestComment_InsertAfter() {
	s.createUser("Ann", models.RoleTrial)
	ann := s.login("Ann")
	id := s.createTask(ann, "Buy milk")

	first := s.commentID(s.postComment(ann, map[string]any{"taskid": id, "text": "one"}, nil))
	s.commentID(s.postComment(ann, map[string]any{"taskid": id, "text": "three"}, nil))
	s.commentID(s.postComment(ann, map[string]any{"taskid": id, "text": "two", "commentid": first}, nil))

	var texts []string
	for _, c := range s.taskComments(id) {
		texts = append(texts, c.Text)
	}
	s.Equal([]string{"one", "two", "three"}, texts)

	w := s.postComment(ann, map[string]any{"taskid": id, "text": "x", "commentid": uuid.NewString()}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("commentid: not found", s.errorBody(w))
}

func (s *RouterTestSuite) TestComment_Rejections() {
	s.createUser("Yariv", models.RoleCreator)
	s.createUser("Eve")
	yariv := s.login("Yariv")
	id := s.createTask(yariv, "Buy milk")
	done := s.createTask(yariv, "Finished")
	s.JSONEq(`{"success":true}`, s.postJSON("/done", map[string]string{"taskid": done}, yariv).Body.String())

	w := s.postComment(s.login("Eve"), map[string]any{"taskid": id, "text": "hi"}, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.postComment(yariv, map[string]any{"text": "hi"}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("taskid: required", s.errorBody(w))

	w = s.postComment(yariv, map[string]any{"taskid": id}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("text: required", s.errorBody(w))

	w = s.postComment(yariv, map[string]any{"taskid": done, "text": "late"}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("task: already done", s.errorBody(w))

	w = s.postComment(yariv, map[string]any{"taskid": id, "text": "both", "imageUrl": "https://example.com/a.png"},
		&filePart{name: "pic.png", contentType: "image/png", data: pngBytes})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("request: invalid", s.errorBody(w))

	s.Empty(s.taskComments(id))
}

func (s *RouterTestSuite) TestMedia_InvalidNames() {
	s.createUser("Ann")
	ann := s.login("Ann")

	for _, name := range []string{"", "../etc/passwd", `a\b.png`, "<x>.png"} {
		w := s.get("/image?file="+url.QueryEscape(name), ann)
		s.Equal(http.StatusBadRequest, w.Code, name)
	}
	s.Equal(http.StatusForbidden, s.get("/image?file=Ann/missing.png", ann).Code)
}
