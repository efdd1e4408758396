package azdo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/singleflight"

	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
)

// FallbackServerAPIVersion is used for self-hosted servers when the WIQL resource version cannot be
// negotiated. Azure DevOps Server 2019 and later accept it.
const FallbackServerAPIVersion = "5.0"

// wiqlLocationID is the resource location id of the "query by WIQL" endpoint.
const wiqlLocationID = "1a9c53f7-f243-4447-b110-35ef023636e4"

type resourceLocation struct {
	ID              string `json:"id"`
	Area            string `json:"area"`
	ResourceName    string `json:"resourceName"`
	MinVersion      string `json:"minVersion"`
	MaxVersion      string `json:"maxVersion"`
	ReleasedVersion string `json:"releasedVersion"`
}

// queryAPIVersion returns the api-version to send with query requests.
// Self-hosted servers without a configured version are asked once which WIQL versions they serve.
func (c *Connection) queryAPIVersion(ctx context.Context) (string, error) {
	if !c.negotiate {
		return c.apiVersion, nil
	}
	c.versionMu.Lock()
	v := c.negotiated
	c.versionMu.Unlock()
	if v != "" {
		return v, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.versionGroup.DoChan("wit", func() (any, error) {
		v, err := c.negotiateVersion(flightCtx)
		if err != nil {
			return "", err
		}
		c.versionMu.Lock()
		c.negotiated = v
		c.versionMu.Unlock()
		return v, nil
	})
	var r singleflight.Result
	select {
	case <-ctx.Done():
		return "", azerrors.QueryExecution("negotiate api version", ctx.Err())
	case r = <-ch:
	}
	err := r.Err
	if err == nil {
		return r.Val.(string), nil
	}
	if azerrors.KindOf(err) == azerrors.KindCredentialAcquisition {
		return "", err
	}
	c.logger.Warnw("could not negotiate WIQL api version, using fallback",
		"endpoint", c.endpoint, "fallback", FallbackServerAPIVersion, "error", err)
	return FallbackServerAPIVersion, nil
}

func (c *Connection) negotiateVersion(ctx context.Context) (string, error) {
	_, b, err := c.do(ctx, http.MethodOptions, c.endpoint+"/_apis/wit", nil)
	if err != nil {
		return "", err
	}
	var payload struct {
		Value []resourceLocation `json:"value"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return "", azerrors.QueryExecution("decode resource locations", err)
	}
	for _, loc := range payload.Value {
		if !strings.EqualFold(loc.ID, wiqlLocationID) && !strings.EqualFold(loc.ResourceName, "wiql") {
			continue
		}
		v, err := pickVersion(loc)
		if err != nil {
			return "", azerrors.QueryExecution("parse resource version", err)
		}
		c.logger.Debugw("negotiated WIQL api version", "endpoint", c.endpoint, "version", v)
		return v, nil
	}
	return "", azerrors.QueryExecution("server does not list the wiql resource", nil)
}

// pickVersion prefers the released version, then the max version, and never goes above
// DefaultAPIVersion.
func pickVersion(loc resourceLocation) (string, error) {
	raw := loc.ReleasedVersion
	if raw == "" || raw == "0.0" {
		raw = loc.MaxVersion
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return "", err
	}
	ceiling := semver.MustParse(DefaultAPIVersion)
	if v.GreaterThan(ceiling) {
		return DefaultAPIVersion, nil
	}
	return formatVersion(v), nil
}

func formatVersion(v *semver.Version) string {
	s := fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	if pre := v.Prerelease(); pre != "" {
		s += "-" + pre
	}
	return s
}
