package signaling

import "github.com/pion/webrtc/v4"

func candidate(s string) *webrtc.ICECandidateInit {
	return &webrtc.ICECandidateInit{Candidate: s}
}
