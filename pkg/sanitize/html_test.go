package sanitize_test

import (
	"testing"

	"github.com/inbucket/courier/pkg/sanitize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLPassthrough(t *testing.T) {
	testStrings := []string{
		"",
		"plain string",
		"one &lt; two",
		"<p>paragraph</p>",
		"<b>bold</b>",
		"<em>emphasis</em>",
		"<div><span>text</span></div>",
		"<center>text</center>",
	}
	for _, ts := range testStrings {
		t.Run(ts, func(t *testing.T) {
			got, err := sanitize.HTML(ts)
			require.NoError(t, err)
			assert.Equal(t, ts, got)
		})
	}
}

func TestHTMLScripts(t *testing.T) {
	testCases := []struct {
		input, want string
	}{
		{`safe<script>nope</script>`, `safe`},
		{
			`<a onblur="alert(something)" href="http://mysite.com">mysite</a>`,
			`<a href="http://mysite.com" rel="nofollow">mysite</a>`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := sanitize.HTML(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHTMLStyles(t *testing.T) {
	testCases := []struct {
		name, input, want string
	}{
		{"open", `<div>`, `<div>`},
		{"self close", `<br/>`, `<br/>`},
		{"squote", `<div id="me" title='best'>`, `<div id="me" title="best">`},
		{"style", `<div id="me" style="color: red;">`, `<div id="me" style="color: red;">`},
		{"mixed case", `<br StYlE="border: 1px solid red;"/>`, `<br style="border: 1px solid red;"/>`},
		{"invalid style", `<br StYlE="position: fixed;"/>`, `<br/>`},
		{
			"mixed",
			`<p id='i' title="cla'zz" style="font-size: 25px;"><b>some text</b></p>`,
			`<p id="i" title="cla&#39;zz" style="font-size: 25px;"><b>some text</b></p>`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := sanitize.HTML(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Hello world & friends",
		sanitize.Text(`<p>Hello <b>world</b> &amp; friends<script>x()</script></p>`))
}
