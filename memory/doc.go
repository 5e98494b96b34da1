// Package memory persists the record of one successful session.
//
// A record holds the accepted code, the optional generate_figure
// documentation and the full conversation history, written as indented JSON
// next to the rendered artifact. Both files share a timestamped stem:
// <YYYYMMDD_HHMM>_<image base>.
package memory
