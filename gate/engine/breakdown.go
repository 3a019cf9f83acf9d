package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/humancheck/gatekeeper/gate/countstore"
	"github.com/humancheck/gatekeeper/gate/platform"
	"github.com/humancheck/gatekeeper/gate/record"
)

const (
	// setstore set of domains which mark a profile as suspicious
	SetFlaggedDomains = "flagged-domains"

	profileCacheName = "profile"
	newAccountAge    = 60 * 24 * time.Hour
)

// Moderator-facing summary of an author's history with the gate and their platform profile.
type Breakdown struct {
	Username string        `json:"username"`
	Status   record.Status `json:"status"`
	Flags    []string      `json:"flags"`

	Removals int `json:"removals"`
	Bans     int `json:"bans"`

	// false when the platform has no profile for the user
	ProfileFound   bool          `json:"profileFound"`
	AccountAge     time.Duration `json:"accountAge,omitempty"`
	CommentKarma   int           `json:"commentKarma"`
	LinkKarma      int           `json:"linkKarma"`
	FlaggedDomains []string      `json:"flaggedDomains,omitempty"`

	NewAccount     bool `json:"newAccount"`
	NegativeKarma  bool `json:"negativeKarma"`
	RepeatOffender bool `json:"repeatOffender"`

	Summary []string `json:"summary"`
}

// Builds the author breakdown for a user. Needs the "posts" permission.
func (eng *Engine) AuthorBreakdown(ctx context.Context, username, actor string) (bd *Breakdown, err error) {
	ctx, done := eng.begin(ctx, "breakdown", username)
	defer func() { done(err) }()
	defer eng.recoverPanic("breakdown", username, &err)

	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if err := eng.checkPermission(ctx, actor, platform.PermPosts); err != nil {
		return nil, err
	}
	pol, err := eng.policy(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := eng.refresh(ctx, username, pol)
	if err != nil {
		return nil, err
	}

	bd = &Breakdown{
		Username: username,
		Status:   record.StatusUnverified,
	}
	if rec != nil {
		bd.Status = rec.Status
	}
	bd.Flags, err = eng.Flags.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	bd.Removals, err = eng.Counters.GetCount(ctx, CounterRemovals, username, countstore.PeriodTotal)
	if err != nil {
		return nil, err
	}
	bd.Bans, err = eng.Counters.GetCount(ctx, CounterBans, username, countstore.PeriodTotal)
	if err != nil {
		return nil, err
	}

	prof, err := eng.userProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if prof != nil {
		bd.ProfileFound = true
		if !prof.CreatedAt.IsZero() {
			bd.AccountAge = eng.now().Sub(prof.CreatedAt)
			bd.NewAccount = bd.AccountAge < newAccountAge
		}
		bd.CommentKarma = prof.CommentKarma
		bd.LinkKarma = prof.LinkKarma
		bd.NegativeKarma = prof.CommentKarma < 0
		bd.FlaggedDomains, err = eng.flaggedDomains(ctx, prof.Links)
		if err != nil {
			return nil, err
		}
	}

	if pol.RepeatOffenderRemovalThreshold > 0 && bd.Removals >= pol.RepeatOffenderRemovalThreshold {
		bd.RepeatOffender = true
	}
	if pol.RepeatOffenderBanThreshold > 0 && bd.Bans >= pol.RepeatOffenderBanThreshold {
		bd.RepeatOffender = true
	}
	bd.Summary = breakdownSummary(bd)
	return bd, nil
}

// fetches the profile through the cache; nil if the platform doesn't know the user
func (eng *Engine) userProfile(ctx context.Context, username string) (*platform.UserProfile, error) {
	key := strings.ToLower(username)
	if eng.Cache != nil {
		val, ok, err := eng.Cache.Get(ctx, profileCacheName, key)
		if err != nil {
			eng.Logger.Warn("profile cache read failed", "err", err, "username", username)
		} else if ok {
			var prof platform.UserProfile
			if err := json.Unmarshal([]byte(val), &prof); err == nil {
				return &prof, nil
			}
		}
	}

	prof, err := eng.Platform.GetUserProfile(ctx, username)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user profile: %w", err)
	}
	if eng.Cache != nil {
		b, err := json.Marshal(prof)
		if err == nil {
			_ = eng.Cache.Set(ctx, profileCacheName, key, string(b))
		}
	}
	return prof, nil
}

// Returns the hostnames of links whose host, or main domain, is in the flagged set. Order follows
// the input; duplicates are dropped.
func (eng *Engine) flaggedDomains(ctx context.Context, links []string) ([]string, error) {
	if eng.Sets == nil {
		return nil, nil
	}
	out := []string{}
	seen := map[string]bool{}
	for _, link := range links {
		host := linkHost(link)
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		for _, candidate := range []string{host, mainDomain(host)} {
			if candidate == "" {
				continue
			}
			ok, err := eng.Sets.InSet(ctx, SetFlaggedDomains, candidate)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, host)
				break
			}
		}
	}
	return out, nil
}

func linkHost(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// "onlyfans" for "onlyfans.com" and "fans.onlyfans.com"
func mainDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return parts[len(parts)-2]
}

func breakdownSummary(bd *Breakdown) []string {
	out := []string{
		fmt.Sprintf("Verification status: %s", bd.Status),
		fmt.Sprintf("Removed by gatekeeper: %d", bd.Removals),
		fmt.Sprintf("Banned by gatekeeper: %d", bd.Bans),
	}
	if !bd.ProfileFound {
		out = append(out, "Profile: not found")
	} else {
		out = append(out, fmt.Sprintf("Account age: %d days", int(bd.AccountAge.Hours()/24)))
		out = append(out, fmt.Sprintf("Comment karma: %d", bd.CommentKarma))
	}
	if len(bd.FlaggedDomains) > 0 {
		out = append(out, "Flagged profile links: "+strings.Join(bd.FlaggedDomains, ", "))
	}
	if len(bd.Flags) > 0 {
		out = append(out, "Flags: "+strings.Join(bd.Flags, ", "))
	}
	if bd.RepeatOffender {
		out = append(out, "⚠️ Repeat offender")
	}
	return out
}
