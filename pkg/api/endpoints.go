package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	PathLogin        = "/api/login"
	PathSignup       = "/api/signup"
	PathOnboarding   = "/api/onboarding"
	PathQuizSubmit   = "/api/quiz/submit"
	PathResumeUpload = "/api/resume/upload"
	PathInternships  = "/api/internships"
	PathProfile      = "/api/profile"
)

func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     PathLogin,
		payload:  creds,
		fallback: "Failed to login.",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     PathSignup,
		payload:  req,
		fallback: "Failed to create account.",
	}, nil)
}

// PostAnswers sends a flattened wizard answer map, plus the user's
// email, to path.
func (c *Client) PostAnswers(ctx context.Context, path, email string, answers map[string]any, fallback string) error {
	payload := make(map[string]any, len(answers)+1)
	for k, v := range answers {
		payload[k] = v
	}
	payload["email"] = email

	return c.do(ctx, request{
		method:   http.MethodPost,
		path:     path,
		payload:  payload,
		fallback: fallback,
	}, nil)
}

// resumeTypes are the upload formats the backend can parse.
var resumeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func checkResumeName(name string) error {
	if _, ok := resumeTypes[strings.ToLower(filepath.Ext(name))]; !ok {
		return fmt.Errorf("%s: only PDF or DOCX files are supported", filepath.Base(name))
	}
	return nil
}

// CheckResumePath validates an upload candidate before any request.
func CheckResumePath(path string) error {
	if err := checkResumeName(path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// UploadResume sends the file at path as the multipart field "resume".
func (c *Client) UploadResume(ctx context.Context, path string) (*ResumeAnalysis, error) {
	if err := CheckResumePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.UploadResumeFrom(ctx, filepath.Base(path), f)
}

// UploadResumeFrom uploads content under filename, whose extension picks
// the part's content type. An unsupported filename fails with a plain
// error before anything is read; every later failure is an *Error.
func (c *Client) UploadResumeFrom(ctx context.Context, filename string, content io.Reader) (*ResumeAnalysis, error) {
	if err := checkResumeName(filename); err != nil {
		return nil, err
	}
	const fallback = "Failed to scan resume."
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename=%q`, filepath.Base(filename)))
	header.Set("Content-Type", resumeTypes[strings.ToLower(filepath.Ext(filename))])
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, &Error{Message: fallback, Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, &Error{Message: fallback, Err: fmt.Errorf("read resume: %w", err)}
	}
	if err := w.Close(); err != nil {
		return nil, &Error{Message: fallback, Err: err}
	}

	var out ResumeAnalysis
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        PathResumeUpload,
		body:        &buf,
		contentType: w.FormDataContentType(),
		fallback:    fallback,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Internships(ctx context.Context) ([]Internship, error) {
	var out []Internship
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     PathInternships,
		fallback: "Failed to fetch internships.",
		generic:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Profile(ctx context.Context, email string) (*Profile, error) {
	var out Profile
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     PathProfile,
		query:    url.Values{"email": {email}},
		fallback: "Could not fetch profile data. Please try again.",
		generic:  true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.do(ctx, request{
		method:   http.MethodPut,
		path:     PathProfile,
		payload:  update,
		fallback: "Failed to update profile.",
	}, nil)
}
