// Copyright 2026 The Leadboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lead

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FormatPhone strips everything except digits and '+'.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppLink builds a wa.me link, optionally with a prefilled message.
func WhatsAppLink(phone, message string) string {
	clean := strings.Replace(FormatPhone(phone), "+", "", 1)
	link := "https://wa.me/" + clean
	if message == "" {
		return link
	}
	return link + "?text=" + componentEscape(message)
}

// QueryEscape output adjusted to the URI component set: spaces become %20
// and !'()* stay literal.
var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func componentEscape(s string) string {
	return componentReplacer.Replace(url.QueryEscape(s))
}

// TelLink builds a tel: URI.
func TelLink(phone string) string {
	return "tel:" + FormatPhone(phone)
}

// InstagramLink normalises a handle or profile URL into a profile URL.
func InstagramLink(handle string) string {
	h := strings.Replace(handle, "@", "", 1)
	h = strings.Replace(h, "https://instagram.com/", "", 1)
	h = strings.Replace(h, "https://www.instagram.com/", "", 1)
	return "https://instagram.com/" + h
}

// RelativeTime renders t relative to now at day granularity.
func RelativeTime(t, now time.Time) string {
	days := DaysSince(t, now)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days == -1:
		return "Tomorrow"
	case days < 0 && days > -7:
		return fmt.Sprintf("in %d days", -days)
	case days > 0 && days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days > 0 && days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	}
	return t.In(now.Location()).Format("Jan 2, 2006")
}

// Links groups the contact shortcuts shown next to a lead.
type Links struct {
	Tel       string `json:"tel"`
	WhatsApp  string `json:"whatsapp"`
	Instagram string `json:"instagram,omitempty"`
}

// ContactLinks derives the contact shortcuts for l.
func ContactLinks(l *Lead) Links {
	links := Links{
		Tel:      TelLink(l.Phone),
		WhatsApp: WhatsAppLink(l.Phone, ""),
	}
	if l.Instagram != nil && *l.Instagram != "" {
		links.Instagram = InstagramLink(*l.Instagram)
	}
	return links
}
