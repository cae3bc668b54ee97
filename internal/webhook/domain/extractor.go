package domain

import "encoding/json"

// CodeExtractor probes one location of an event for a referral code.
type CodeExtractor struct {
	Source string
	Key    string
	lookup func(Event) map[string]json.RawMessage
}

func (x CodeExtractor) Extract(e Event) string {
	return attributeValue(x.lookup(e)[x.Key])
}

func subscriberAttribute(key string) CodeExtractor {
	return CodeExtractor{
		Source: "subscriber_attributes",
		Key:    key,
		lookup: func(e Event) map[string]json.RawMessage { return e.SubscriberAttributes },
	}
}

func eventAttribute(key string) CodeExtractor {
	return CodeExtractor{
		Source: "attributes",
		Key:    key,
		lookup: func(e Event) map[string]json.RawMessage { return e.Attributes },
	}
}

// CodeExtractors lists the referral code locations in priority order.
var CodeExtractors = []CodeExtractor{
	subscriberAttribute("$influencerCode"),
	subscriberAttribute("$referralCode"),
	subscriberAttribute("influencerCode"),
	subscriberAttribute("referralCode"),
	eventAttribute("$influencerCode"),
	eventAttribute("$referralCode"),
}

// ExtractReferralCode returns the first non-empty code and the extractor
// that found it.
func ExtractReferralCode(e Event, extractors []CodeExtractor) (string, *CodeExtractor) {
	for i := range extractors {
		if code := extractors[i].Extract(e); code != "" {
			return code, &extractors[i]
		}
	}
	return "", nil
}
