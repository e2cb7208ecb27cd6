package robots

import (
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// Policy caches parsed robots.txt rules per host so discovery can skip
// well-known URLs a site disallows. Hosts without usable rules are allowed.
type Policy struct {
	mu    sync.Mutex
	rules map[string]*robotstxt.RobotsData // host -> parsed data (nil = allow all)
	log   *logrus.Entry
}

// NewPolicy creates an empty Policy
func NewPolicy(log *logrus.Entry) *Policy {
	return &Policy{
		rules: make(map[string]*robotstxt.RobotsData),
		log:   log.WithField("component", "robots_policy"),
	}
}

// Record stores the robots.txt response for host. Only a 2xx body that parses is kept;
// anything else (missing file, server error, garbage) caches "allow all".
func (p *Policy) Record(host string, statusCode int, body []byte) {
	host = strings.ToLower(host)
	var data *robotstxt.RobotsData
	if statusCode >= 200 && statusCode < 300 {
		parsed, err := robotstxt.FromBytes(body)
		if err != nil {
			p.log.WithFields(logrus.Fields{"host": host, "error": err}).Debug("Unparsable robots.txt, treating as allow-all")
		} else {
			data = parsed
		}
	}

	p.mu.Lock()
	p.rules[host] = data
	p.mu.Unlock()
}

// Known reports whether Record has been called for host
func (p *Policy) Known(host string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rules[strings.ToLower(host)]
	return ok
}

// Allowed reports whether userAgent may fetch rawURL according to the recorded rules
func (p *Policy) Allowed(rawURL, userAgent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	p.mu.Lock()
	data := p.rules[strings.ToLower(u.Host)]
	p.mu.Unlock()

	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), userAgent)
}
