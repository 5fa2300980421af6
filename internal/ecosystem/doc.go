// Package ecosystem validates MCP server implementations end to end: it
// fetches a candidate's source, provisions an isolated workspace, starts the
// server as a supervised child process, runs conformance validation against
// the live address, and aggregates the outcomes into a report.
//
// The package is organized around five collaborators:
//
//   - Provisioner: workspace creation, source fetch, ecosystem detection,
//     dependency installation, start-command derivation.
//   - Supervisor: child process lifecycle with output capture and a
//     terminate-then-kill shutdown.
//   - Invoker: conformance validation of a live address, either through the
//     built-in probe suite or an external engine binary.
//   - Orchestrator: runs targets through the pipeline under a bounded worker
//     pool, one terminal ValidationResult per target no matter what fails.
//   - Report: totals, distributions, and recommendations over a run.
//
// Every per-target failure is mapped to a distinct status (setup_failed,
// build_failed, failed_to_start, timeout, ...) so ecosystem-wide problems can
// be root-caused from the report alone.
package ecosystem
