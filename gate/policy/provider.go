package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Source of the current enforcement policy. Implementations are read synchronously at the start of
// every engine operation.
type Provider interface {
	Policy(ctx context.Context) (*Policy, error)
}

type StaticProvider struct {
	P Policy
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(p Policy) *StaticProvider {
	return &StaticProvider{P: p}
}

func (s *StaticProvider) Policy(ctx context.Context) (*Policy, error) {
	p := s.P
	return &p, nil
}

// Reads a JSON settings file on every call, so edits take effect on the next event without a
// restart. Missing fields keep their default values.
type FileProvider struct {
	Path string
}

var _ Provider = (*FileProvider)(nil)

// JSON layout of the settings file. Durations are whole minutes/seconds, matching how moderators
// think about them.
type fileSettings struct {
	CommunityName                  *string `json:"communityName"`
	ActionOnPendingVerification    *string `json:"actionOnPendingVerification"`
	ActionOnTimeoutVerification    *string `json:"actionOnTimeoutVerification"`
	BanOnFailedVerification        *bool   `json:"banOnFailedVerification"`
	BanOnConfirmationTimeout       *bool   `json:"banOnConfirmationTimeout"`
	SpamFailedVerification         *bool   `json:"spamFailedVerification"`
	PendingTimeoutMinutes          *int    `json:"pendingConfirmationTimeoutMinutes"`
	MinOpenSeconds                 *int    `json:"minHumanTimeToOpenConfirmForm"`
	MinCompleteSeconds             *int    `json:"minHumanTimeToConfirmHuman"`
	AIUsageAllowed                 *string `json:"aiUsageAllowed"`
	NotifyUserOnVerificationReq    *bool   `json:"notifyUserOnVerificationRequest"`
	NotifyUserOnRemovals           *bool   `json:"notifyUserPostAndCommentRemovals"`
	TrackVerificationInModNotes    *bool   `json:"trackVerificationInModNotes"`
	AllowConfirmingWithoutRequest  *bool   `json:"allowConfirmingWithoutNotification"`
	RepeatOffenderRemovalThreshold *int    `json:"repeatOffenderRemovalThreshold"`
	RepeatOffenderBanThreshold     *int    `json:"repeatOffenderBanThreshold"`
	BanQuotaPerDay                 *int    `json:"banQuotaPerDay"`
}

func (f *FileProvider) Policy(ctx context.Context) (*Policy, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening policy file: %w", err)
	}
	defer func() { _ = fh.Close() }()

	raw, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return ParseJSON(raw)
}

// Parses a JSON settings document on top of the defaults.
func ParseJSON(raw []byte) (*Policy, error) {
	var fs fileSettings
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, fmt.Errorf("parsing policy JSON: %w", err)
	}

	p := Default()
	if fs.CommunityName != nil {
		p.CommunityName = *fs.CommunityName
	}
	if fs.ActionOnPendingVerification != nil {
		a, err := ParseAction(*fs.ActionOnPendingVerification)
		if err != nil {
			return nil, err
		}
		p.ActionOnPending = a
	}
	if fs.ActionOnTimeoutVerification != nil {
		a, err := ParseAction(*fs.ActionOnTimeoutVerification)
		if err != nil {
			return nil, err
		}
		p.ActionOnTimeout = a
	}
	if fs.AIUsageAllowed != nil {
		t, err := ParseAITolerance(*fs.AIUsageAllowed)
		if err != nil {
			return nil, err
		}
		p.AIUsageAllowed = t
	}
	setBool(&p.BanOnFailed, fs.BanOnFailedVerification)
	setBool(&p.BanOnTimeout, fs.BanOnConfirmationTimeout)
	setBool(&p.SpamFailed, fs.SpamFailedVerification)
	setBool(&p.NotifyOnRequest, fs.NotifyUserOnVerificationReq)
	setBool(&p.NotifyOnRemoval, fs.NotifyUserOnRemovals)
	setBool(&p.TrackInModNotes, fs.TrackVerificationInModNotes)
	setBool(&p.AllowConfirmWithoutRequest, fs.AllowConfirmingWithoutRequest)
	if fs.PendingTimeoutMinutes != nil {
		p.PendingTimeout = time.Duration(*fs.PendingTimeoutMinutes) * time.Minute
	}
	if fs.MinOpenSeconds != nil {
		p.MinOpenLatency = time.Duration(*fs.MinOpenSeconds) * time.Second
	}
	if fs.MinCompleteSeconds != nil {
		p.MinCompletionLatency = time.Duration(*fs.MinCompleteSeconds) * time.Second
	}
	setInt(&p.RepeatOffenderRemovalThreshold, fs.RepeatOffenderRemovalThreshold)
	setInt(&p.RepeatOffenderBanThreshold, fs.RepeatOffenderBanThreshold)
	setInt(&p.BanQuotaPerDay, fs.BanQuotaPerDay)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
