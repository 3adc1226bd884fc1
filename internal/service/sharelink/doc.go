// Package sharelink guards the expensive live-location link generation call
// with a per-person rate limiter.
//
// A cached link is reused while the last generation is inside the rate
// window and the cached value is inside the staleness window. Staleness
// always overrides the rate window: an expired link is regenerated no matter
// how recently the generator ran.
package sharelink
