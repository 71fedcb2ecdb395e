// Package connection paces redials of a dropped match stream.
//
// Delays grow from Initial by Multiplier per attempt up to Max, and reset
// once a stream is established. With the defaults that is 1s, 2s, 4s, ...
// 32s, then 60s until a dial succeeds. Each delay is stretched by a random
// share of up to Jitter of itself, so clients dropped together by a
// backend restart spread their redials.
package connection
