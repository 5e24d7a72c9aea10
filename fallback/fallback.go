// Package fallback renders a failed heartbeat as commands the user can run
// by hand: a POSIX curl line, a Windows cmd curl.exe line, and a native
// PowerShell Invoke-RestMethod call.
//
// Every function is pure. Quoting is exact: each shell reconstructs the
// original URL, header values and body byte for byte.
package fallback

import (
	"net/http"
	"strings"

	"github.com/vinayprograms/wakabeat/heartbeat"
)

// Section labels, in output order.
const (
	LabelPOSIX      = "POSIX / WSL / Git Bash (Linux/macOS):"
	LabelCmd        = "Windows (cmd) using curl.exe:"
	LabelPowerShell = "PowerShell (native):"

	RelayNote = "If these fail due to the same network restrictions, run a local relay " +
		"(wakabeat relay) and point the proxy URL at it, or run the command on your " +
		"machine outside of the host application."
)

// Build returns the full fallback text for one request.
func Build(url, body string, headers []heartbeat.Header) string {
	return strings.Join([]string{
		LabelPOSIX,
		POSIX(url, body, headers),
		"",
		LabelCmd,
		WindowsCmd(url, body, headers),
		"",
		LabelPowerShell,
		PowerShell(url, body, headers),
		"",
		RelayNote,
	}, "\n")
}

// ForRequest is Build for a heartbeat request.
func ForRequest(req *heartbeat.Request) string {
	return Build(req.URL, req.Body, req.Headers)
}

// POSIX renders a curl command for sh-compatible shells.
func POSIX(url, body string, headers []heartbeat.Header) string {
	var b strings.Builder
	b.WriteString("curl -X POST ")
	b.WriteString(QuotePOSIX(url))
	for _, h := range headers {
		b.WriteString(" -H ")
		b.WriteString(QuotePOSIX(h.Name + ": " + h.Value))
	}
	b.WriteString(" --data-raw ")
	b.WriteString(QuotePOSIX(body))
	return b.String()
}

// WindowsCmd renders a curl.exe command for cmd.exe. Arguments are quoted for
// curl.exe's own parser and the whole line is then caret-escaped so cmd.exe
// hands it over unchanged.
func WindowsCmd(url, body string, headers []heartbeat.Header) string {
	var b strings.Builder
	b.WriteString("curl.exe -X POST ")
	b.WriteString(QuoteCmd(url))
	for _, h := range headers {
		b.WriteString(" -H ")
		b.WriteString(QuoteCmd(h.Name + ": " + h.Value))
	}
	b.WriteString(" --data-raw ")
	b.WriteString(QuoteCmd(body))
	return EscapeCmd(b.String())
}

// PowerShell renders an Invoke-RestMethod call. Content-Type goes to
// -ContentType and Content-Length is left to PowerShell, which rejects both
// in -Headers.
func PowerShell(url, body string, headers []heartbeat.Header) string {
	contentType := heartbeat.ContentTypeJSON

	var b strings.Builder
	b.WriteString("Invoke-RestMethod -Uri ")
	b.WriteString(QuotePowerShell(url))
	b.WriteString(" -Method Post -Headers @{\n")
	for _, h := range headers {
		switch http.CanonicalHeaderKey(h.Name) {
		case heartbeat.HeaderContentType:
			contentType = h.Value
			continue
		case heartbeat.HeaderContentLength:
			continue
		}
		b.WriteString("    ")
		b.WriteString(QuotePowerShell(h.Name))
		b.WriteString("=")
		b.WriteString(QuotePowerShell(h.Value))
		b.WriteString(";\n")
	}
	b.WriteString("} -Body ")
	b.WriteString(QuotePowerShell(body))
	b.WriteString(" -ContentType ")
	b.WriteString(QuotePowerShell(contentType))
	return b.String()
}

// QuotePOSIX single-quotes s, turning each ' into '\''.
func QuotePOSIX(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuotePowerShell single-quotes s, doubling each '.
func QuotePowerShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteCmd double-quotes s for a program parsing its command line with the
// Microsoft C runtime rules, as curl.exe does. Each " becomes \" and
// backslashes are doubled only where they precede a quote.
func QuoteCmd(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	b.WriteString(strings.Repeat(`\`, slashes))
	b.WriteByte('"')
	return b.String()
}

// cmdMeta are the bytes cmd.exe acts on outside its own quote state. The
// quote itself is escaped too, so cmd.exe never enters that state.
const cmdMeta = `"&|<>^()`

// EscapeCmd caret-escapes line for the cmd.exe parser. Every byte following a
// % is also escaped, so any %name% candidate names a variable starting with ^,
// which is never defined and stays unexpanded.
func EscapeCmd(line string) string {
	var b strings.Builder
	afterPercent := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if afterPercent || strings.IndexByte(cmdMeta, c) >= 0 {
			b.WriteByte('^')
		}
		b.WriteByte(c)
		afterPercent = c == '%'
	}
	return b.String()
}
