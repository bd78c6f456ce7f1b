// Package agent implements the Session Agent: a per-session state machine
// that drives an extractor LLM through a persistent multi-turn conversation,
// parses its structured replies, and writes the results through the Store
// and Vector Backend.
package agent
