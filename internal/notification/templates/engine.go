package templates

import (
	"bytes"
	"context"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"reflect"
	"sync"
	texttmpl "text/template"
)

// Rendered holds the per-channel materialized content from a scenario template.
type Rendered struct {
	Subject   string
	EmailHTML string
	EmailText string
	SMSText   string
}

// IHandle is a runtime-typed handle to a template scenario.
// A generic Handle[T] implements this to carry compile-time data type info.
type IHandle interface {
	ID() string
	DataType() reflect.Type
}

// Handle is a generic, typed handle for a template scenario.
type Handle[T any] struct {
	id string
}

// Expect creates a typed handle for a given template ID (e.g., "auth.verify_email").
func Expect[T any](id string) Handle[T] { return Handle[T]{id: id} }

func (h Handle[T]) ID() string { return h.id }
func (h Handle[T]) DataType() reflect.Type {
	var zero *T
	return reflect.TypeOf(zero).Elem()
}

// Engine compiles and renders embedded scenario templates.
//
// Each <id>.tmpl file declares named blocks: "subject", "email_text" and
// "sms_text" are rendered with text/template, "email_html" with
// html/template. Missing blocks simply leave the corresponding field empty.
type Engine struct {
	fs    fs.FS
	mu    sync.RWMutex
	cache map[string]*compiled
}

type compiled struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

// NewEngine creates a template engine over the embedded template files.
func NewEngine() *Engine {
	return &Engine{
		fs:    EmbeddedFS,
		cache: make(map[string]*compiled),
	}
}

// Render is a typed helper that enforces the data type associated with the handle at compile time.
func Render[T any](ctx context.Context, e *Engine, h Handle[T], data T) (Rendered, error) {
	return e.RenderAny(ctx, h.ID(), data)
}

// RenderAny renders a scenario by ID with arbitrary data.
// Prefer the typed Render helper with a Handle[T] in internal code.
func (e *Engine) RenderAny(ctx context.Context, id string, data any) (Rendered, error) {
	c, err := e.getCompiled(id)
	if err != nil {
		return Rendered{}, err
	}

	var out Rendered
	if c.text.Lookup("subject") != nil {
		if out.Subject, err = execText(c.text, "subject", data); err != nil {
			return Rendered{}, fmt.Errorf("render subject: %w", err)
		}
	}
	if c.text.Lookup("email_text") != nil {
		if out.EmailText, err = execText(c.text, "email_text", data); err != nil {
			return Rendered{}, fmt.Errorf("render email_text: %w", err)
		}
	}
	if c.text.Lookup("sms_text") != nil {
		if out.SMSText, err = execText(c.text, "sms_text", data); err != nil {
			return Rendered{}, fmt.Errorf("render sms_text: %w", err)
		}
	}
	if c.html.Lookup("email_html") != nil {
		if out.EmailHTML, err = execHTML(c.html, "email_html", data); err != nil {
			return Rendered{}, fmt.Errorf("render email_html: %w", err)
		}
	}

	return out, nil
}

func (e *Engine) getCompiled(id string) (*compiled, error) {
	e.mu.RLock()
	cached, ok := e.cache[id]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	path := "files/" + id + ".tmpl"
	b, err := fs.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read embedded template %q: %w", path, err)
	}

	c, err := parseBoth(id, string(b))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[id] = c
	e.mu.Unlock()
	return c, nil
}

func parseBoth(id, content string) (*compiled, error) {
	// text/template for subject, email_text, sms_text
	tText, err := texttmpl.New(id).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse text blocks (%s): %w", id, err)
	}
	// html/template for email_html
	tHTML, err := htmltmpl.New(id).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse html block (%s): %w", id, err)
	}
	return &compiled{text: tText, html: tHTML}, nil
}

func execText(t *texttmpl.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func execHTML(t *htmltmpl.Template, name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
