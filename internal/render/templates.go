package render

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/dropDatabas3/kafkabroker/internal/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	TemplateOverride = "override.conf.tmpl"
	TemplateKrb5     = "krb5.conf.tmpl"
	TemplateJAAS     = "jaas.conf.tmpl"
)

// Enctypes habilitados en krb5.conf.
const Enctypes = "aes256-cts-hmac-sha1-96 aes128-cts-hmac-sha1-96 arc-four-hmac rc4-hmac"

type OverrideVars struct {
	Unit        []config.KV
	User        string
	Group       string
	Service     []config.KV
	Environment []config.KV
}

type Krb5Vars struct {
	Realm    string
	Domain   string
	KDC      string
	Admin    string
	Enctypes string
}

type JAASVars struct {
	Keytab    string
	Principal string
}

// Templates agrupa los templates parseados. Se cargan una vez por dispatch.
type Templates struct {
	set *template.Template
}

func LoadTemplates() (*Templates, error) {
	t, err := template.New("render").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{set: t}, nil
}

func (t *Templates) exec(name string, vars any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, vars); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (t *Templates) Override(v OverrideVars) ([]byte, error) { return t.exec(TemplateOverride, v) }
func (t *Templates) Krb5(v Krb5Vars) ([]byte, error)         { return t.exec(TemplateKrb5, v) }
func (t *Templates) JAAS(v JAASVars) ([]byte, error)         { return t.exec(TemplateJAAS, v) }
