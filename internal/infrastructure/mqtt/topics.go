package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the automation creator bus.
//
// Service calls use a request/response pair keyed by a correlation ID:
//
//	automationcreator/request/{domain}/{service}/{request_id}
//	automationcreator/response/{request_id}
const (
	// TopicPrefix is the root of every topic this service uses.
	TopicPrefix = "automationcreator"

	// TopicPrefixRequest is the base for service call requests.
	TopicPrefixRequest = TopicPrefix + "/request"

	// TopicPrefixResponse is the base for service call responses.
	TopicPrefixResponse = TopicPrefix + "/response"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for automation creator MQTT topics.
// Using these helpers keeps publishers and subscribers in agreement.
//
//	topics := mqtt.Topics{}
//	req := topics.ServiceRequest("ai_automation_creator", "create_automation", id)
//	// Returns: "automationcreator/request/ai_automation_creator/create_automation/<id>"
type Topics struct{}

// ServiceRequest returns the topic a caller publishes a service call on.
func (Topics) ServiceRequest(domain, service, requestID string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefixRequest, domain, service, requestID)
}

// ServiceResponse returns the topic the host answers a service call on.
func (Topics) ServiceResponse(requestID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixResponse, requestID)
}

// AllServiceRequests returns the wildcard the host subscribes to.
func (Topics) AllServiceRequests() string {
	return TopicPrefixRequest + "/+/+/+"
}

// AllServiceResponses returns the wildcard a caller subscribes to.
func (Topics) AllServiceResponses() string {
	return TopicPrefixResponse + "/+"
}

// HostStates returns the retained topic carrying the host's entity snapshot.
func (Topics) HostStates() string {
	return TopicPrefix + "/host/states"
}

// SystemStatus returns the retained online/offline status topic (LWT target).
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseServiceRequest splits a request topic into its parts.
// ok is false when the topic is not a well-formed service request.
func (Topics) ParseServiceRequest(topic string) (domain, service, requestID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixRequest+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", "", "", false
		}
	}
	return parts[0], parts[1], parts[2], true
}

// ParseServiceResponse returns the request ID a response topic belongs to.
func (Topics) ParseServiceResponse(topic string) (requestID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixResponse+"/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
