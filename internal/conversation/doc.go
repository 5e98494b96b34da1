// Package conversation holds the append-only multimodal turn history sent to
// the model for one image upload.
//
// The first turn is always a user turn carrying exactly one image block and one
// text block. Every later pair is an assistant text turn followed by a user
// text turn (a repair request or operator feedback).
package conversation
