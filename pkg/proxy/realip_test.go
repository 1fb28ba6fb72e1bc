package proxy

import (
	"net/http/httptest"
	"testing"
)

var testTrustedHeaders = []string{
	"cf-connecting-ip",
	"x-forwarded-for",
	"x-real-ip",
	"x-client-ip",
	"true-client-ip",
}

func TestDetectClientIP_Priority(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:33000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	r.Header.Set("CF-Connecting-IP", "203.0.113.4")

	d := DetectClientIP(r, testTrustedHeaders)
	if d.IP != "203.0.113.4" {
		t.Errorf("IP = %q, want cf-connecting-ip value", d.IP)
	}
	if d.Source != "cf-connecting-ip" {
		t.Errorf("Source = %q", d.Source)
	}
	if !d.ViaCloudflare || !d.ViaProxy {
		t.Errorf("ViaCloudflare/ViaProxy = %v/%v, want true/true", d.ViaCloudflare, d.ViaProxy)
	}
}

func TestDetectClientIP_ForwardedForFirstElement(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:33000"
	r.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.2, 172.16.0.9")

	if ip := RealIP(r, testTrustedHeaders); ip != "198.51.100.7" {
		t.Errorf("RealIP = %q, want first list element", ip)
	}
}

func TestDetectClientIP_PrivateHeaderValueSkipped(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:33000"
	r.Header.Set("CF-Connecting-IP", "192.168.1.50")
	r.Header.Set("X-Real-IP", "198.51.100.7")

	d := DetectClientIP(r, testTrustedHeaders)
	if d.IP != "198.51.100.7" {
		t.Errorf("IP = %q, want the first public candidate", d.IP)
	}
	if d.Source != "x-real-ip" {
		t.Errorf("Source = %q", d.Source)
	}
}

func TestDetectClientIP_PeerFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.10:54321"

	d := DetectClientIP(r, testTrustedHeaders)
	if d.IP != "192.168.1.10" {
		t.Errorf("IP = %q, want peer address", d.IP)
	}
	if d.Source != "peer" {
		t.Errorf("Source = %q, want peer", d.Source)
	}
	if d.ViaProxy {
		t.Error("ViaProxy = true without forwarding headers")
	}
}

func TestDetectClientIP_GarbageHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.99:1000"
	r.Header.Set("X-Forwarded-For", "not-an-ip")

	d := DetectClientIP(r, testTrustedHeaders)
	if d.IP != "203.0.113.99" {
		t.Errorf("IP = %q, want peer after garbage header", d.IP)
	}
}
