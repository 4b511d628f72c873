package config

import "github.com/neighborhood-lab/care-commons-sub007/internal/corerrors"

var errMissingAPIBaseURL = corerrors.New(corerrors.KindValidation, "API_BASE_URL is required")

func errBadStateRulesOverrides(cause error) error {
	return corerrors.Wrap(cause, corerrors.KindValidation, "STATE_RULES_OVERRIDES is not valid JSON")
}
