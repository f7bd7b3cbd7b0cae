package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pixelforge/internal/config"
)

func TestRendererEscapesUserInput(t *testing.T) {
	r, err := NewRenderer("Pixelforge", "https://pixelforge.test")
	require.NoError(t, err)

	html, text, err := r.Render(tmplQuoteReply, "Update", struct {
		Name, Service, Message, Status string
	}{"<b>Eve</b>", "Website", "Price is 5 < 6", "in-progress"})
	require.NoError(t, err)

	assert.Contains(t, html, "&lt;b&gt;Eve&lt;/b&gt;")
	assert.Contains(t, html, "<title>Update</title>")
	assert.Contains(t, text, "Price is 5 < 6")

	_, _, err = r.Render("missing", "x", nil)
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("Pixelforge <noreply@pixelforge.test>", "a@example.com", "Héllo", "<p>hi</p>", "hi"))

	assert.Contains(t, msg, "To: a@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?H=C3=A9llo?=\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
	assert.True(t, strings.HasSuffix(msg, "--\r\n"))

	plainOnly := string(buildMessage("x@example.com", "a@example.com", "Hi", "", "hi"))
	assert.NotContains(t, plainOnly, "text/html")
}

func TestNotifierSurvivesPanics(t *testing.T) {
	n := NewNotifier(zap.NewNop())
	ran := make(chan struct{}, 1)
	n.Go("boom", func() error { panic("bad template") })
	n.Go("ok", func() error { ran <- struct{}{}; return nil })
	n.Wait()
	assert.Len(t, ran, 1)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"(555) 010-0199":   "+15550100199",
		"15550100199":      "+15550100199",
		"+44 20 7946 0958": "+442079460958",
		"555.010.0199":     "+15550100199",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestTwilioSend(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSMSService(&config.SMSConfig{Enabled: true, Provider: "twilio", TwilioSID: "AC123", TwilioAuth: "token", TwilioFrom: "+15550000000"}, zap.NewNop())
	s.baseURL = srv.URL

	require.NoError(t, s.Send(context.Background(), "555 010 0199", "New quote"))
	assert.Equal(t, "+15550100199", got.Get("To"))
	assert.Equal(t, "New quote", got.Get("Body"))
}

func TestTwilioError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not valid."}`))
	}))
	defer srv.Close()

	s := NewSMSService(&config.SMSConfig{Enabled: true, Provider: "twilio", TwilioSID: "AC123", TwilioAuth: "token", TwilioFrom: "+15550000000"}, zap.NewNop())
	s.baseURL = srv.URL

	err := s.Send(context.Background(), "+1555", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
}

func TestSMSDisabledAndUnknownProvider(t *testing.T) {
	off := NewSMSService(&config.SMSConfig{Enabled: false, Provider: "twilio"}, zap.NewNop())
	assert.NoError(t, off.Send(context.Background(), "+15550100", "hi"))
	assert.False(t, off.IsEnabled())

	odd := NewSMSService(&config.SMSConfig{Enabled: true, Provider: "pigeon"}, zap.NewNop())
	assert.Error(t, odd.Send(context.Background(), "+15550100", "hi"))
}

func TestEmailServiceDisabled(t *testing.T) {
	s := NewEmailService(&config.EmailConfig{Enabled: false}, zap.NewNop())
	assert.NoError(t, s.SendHTMLEmail("a@example.com", "Hi", "<p>hi</p>", "hi"))
	assert.False(t, s.IsEnabled())

	broken := NewEmailService(&config.EmailConfig{Enabled: true}, zap.NewNop())
	assert.Error(t, broken.SendHTMLEmail("a@example.com", "Hi", "<p>hi</p>", "hi"))
}
