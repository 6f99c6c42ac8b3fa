// Package agent contains the concrete specialist agents the coordination
// engine dispatches to, plus the Registry that maps classifier agent names
// and URL routes onto them.
//
// Three agent shapes implement core.Agent:
//
//  1. ModelAgent answers with a language model driven by an Instruction
//  2. RemoteAgent forwards prompts to an A2A endpoint
//  3. DraftAgent composes e-mail drafts from upstream agent context and
//     ends them with the approval question the approval detector looks for
//
// Persistence, model specifics and transport live in their own packages to
// avoid cyclic deps.
package agent
