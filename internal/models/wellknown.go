/**
 * Well-known DNS Fallbacks.
 *
 * The constant public resolver sets the auto-fix planner and DNS
 * remediation actions fall back to when an interface's configured
 * resolvers are the suspected fault.
 *
 * Author: KleaSCM
 * Email: KleaSCM@gmail.com
 */

package models

// CloudflareDNS is Cloudflare's public resolver set (v4 then v6).
var CloudflareDNS = []string{"1.1.1.1", "1.0.0.1", "2606:4700:4700::1111", "2606:4700:4700::1001"}

// GoogleDNS is Google's public resolver set (v4 then v6).
var GoogleDNS = []string{"8.8.8.8", "8.8.4.4", "2001:4860:4860::8888", "2001:4860:4860::8844"}

// Quad9DNS is Quad9's public resolver set.
var Quad9DNS = []string{"9.9.9.9", "149.112.112.112"}
