package emails

import (
	"fmt"
	"strings"
	"time"
)

const (
	themePrimary   = "#1D4ED8"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// EmailLayout wraps content in the shared HTML frame.
func EmailLayout(orgName, contentHTML string) string {
	org := EscapeHTML(orgName)
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>%s</title>
  <style>
    body { margin: 0; padding: 0; background-color: %s; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 20px 0; font-size: 16px; line-height: 1.6; }
    .content-body h1 { font-size: 22px; margin: 0 0 16px 0; color: %s; }
    .footer-text { color: %s; font-size: 13px; }
  </style>
</head>
<body>
  <table role="presentation" width="100%%" border="0" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" width="600" style="background-color: %s; border-radius: 8px;">
          <tr><td class="content-body" style="padding: 40px 48px 24px 48px;">%s</td></tr>
          <tr><td align="center" style="padding: 24px 48px 32px 48px;"><p class="footer-text">&copy; %d %s</p></td></tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		org, themeBgBody, themeTextMain, themePrimary, themeTextMuted, themeWhite, contentHTML, time.Now().Year(), org)
}

// EscapeHTML escapes HTML specials for safe interpolation.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
