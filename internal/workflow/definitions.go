package workflow

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/MrWong99/conclave/internal/prompts"
	"github.com/MrWong99/conclave/internal/registry"
	"github.com/MrWong99/conclave/internal/tools"
)

// Definitions returns every workflow tool definition in registration order.
func Definitions() []*Definition {
	return []*Definition{
		ThinkDeep(), Planner(), Debug(), CodeReview(), Precommit(),
		Analyze(), Refactor(), Secaudit(), Testgen(), Docgen(), Tracer(),
	}
}

// ThinkDeep is the extended-reasoning partner: the agent investigates, then a
// reasoning model challenges the conclusion.
func ThinkDeep() *Definition {
	return &Definition{
		Name: "thinkdeep",
		Description: "Multi-step deep reasoning on a complex problem. Investigate between " +
			"steps, record findings and hypotheses, and receive an expert challenge of " +
			"the final conclusion.",
		Category:           registry.CategoryExtendedReasoning,
		DefaultTemperature: tools.TemperatureCreative,
		SystemPrompt:       prompts.ThinkDeep,
		ExpertInstruction: "Critically evaluate the investigation above: confirm what holds, " +
			"challenge what does not, and surface the alternatives the agent missed.",
		PauseStatus:   "pause_for_thinkdeep",
		CompletionKey: "complete_thinkdeep",
		Expert:        true,
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			if stepNumber == 1 {
				return []string{
					"Read the files and context most relevant to the stated problem",
					"Identify the core question and the assumptions it rests on",
					"Form an initial hypothesis and note the evidence for and against it",
				}
			}
			return []string{
				"Test the current hypothesis against concrete code or documentation",
				"Search for counter-examples and alternative explanations",
				"Update findings with what was confirmed and what was ruled out",
			}
		},
	}
}

// Planner breaks an objective into sequential steps. No expert call: the
// plan itself is the deliverable.
func Planner() *Definition {
	return &Definition{
		Name: "planner",
		Description: "Interactive sequential planner. Build a plan step by step, with " +
			"revision and branching as understanding deepens.",
		Category:           registry.CategoryExtendedReasoning,
		DefaultTemperature: tools.TemperatureCreative,
		SystemPrompt:       prompts.Planner,
		PauseStatus:        "pause_for_planner",
		CompletionKey:      "complete_planning",
		FinalStatus:        "planning_success",
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Reflect on the plan so far and the constraints discovered",
				fmt.Sprintf("Draft step %d of the plan with concrete, verifiable actions", stepNumber+1),
				"Note dependencies on earlier steps and any branch points",
			}
		},
	}
}

// Debug is the root-cause investigation workflow. The agent with certain
// confidence skips the expert and proceeds straight to the fix.
func Debug() *Definition {
	return &Definition{
		Name: "debug",
		Description: "Systematic root-cause analysis. Investigate between steps, track " +
			"hypotheses against evidence, and get expert validation of the diagnosis.",
		Category:           registry.CategoryExtendedReasoning,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Debug,
		ExpertInstruction: "Validate the root-cause hypothesis above against the evidence. " +
			"State whether the proposed fix addresses the cause or only the symptom.",
		PauseStatus:    "pause_for_investigation",
		CompletionKey:  "complete_investigation",
		Expert:         true,
		SkipConfidence: "certain",
		CertainStatus:  "certain_confidence_proceed_with_fix",
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			actions := []string{
				"Trace the failing code path and read the methods involved",
				"Gather concrete evidence: error output, logs, reproduction conditions",
			}
			switch confidence {
			case "", "exploring", "low":
				actions = append(actions, "Form or refine a hypothesis that explains all of the evidence")
			default:
				actions = append(actions, "Attempt to falsify the current hypothesis before raising confidence")
			}
			return actions
		},
	}
}

// CodeReview runs a structured review investigation before expert synthesis.
func CodeReview() *Definition {
	return &Definition{
		Name: "codereview",
		Description: "Step-by-step code review covering quality, security, performance, and " +
			"architecture, with severity-tagged findings and expert synthesis.",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.CodeReview,
		ExpertInstruction: "Synthesise the review: confirm or adjust each issue's severity, " +
			"flag anything the investigation missed, and order the findings by impact.",
		PauseStatus:    "pause_for_code_review",
		CompletionKey:  "complete_code_review",
		Expert:         true,
		SkipConfidence: "certain",
		Fields: map[string]*jsonschema.Schema{
			"review_type": {
				Type:        "string",
				Enum:        []any{"full", "security", "performance", "quick"},
				Description: "Scope of the review. Defaults to full.",
			},
			"severity_filter": {
				Type:        "string",
				Enum:        []any{"critical", "high", "medium", "low", "all"},
				Description: "Lowest severity to report. Defaults to all.",
			},
		},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Examine the code under review for correctness, clarity, and idiom",
				"Check error handling, input validation, and concurrency for defects",
				"Record each issue with a severity (critical/high/medium/low) and location",
			}
		},
	}
}

// Precommit validates a pending change set against its stated intent.
func Precommit() *Definition {
	return &Definition{
		Name: "precommit",
		Description: "Pre-commit validation of pending changes: completeness, correctness, " +
			"unintended side effects, and fit with the stated intent.",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Precommit,
		ExpertInstruction: "Judge whether this change set is safe to commit: verify it matches " +
			"its intent, is complete, and introduces no regressions the investigation found.",
		PauseStatus:    "pause_for_validation",
		CompletionKey:  "complete_validation",
		Expert:         true,
		SkipConfidence: "certain",
		Fields: map[string]*jsonschema.Schema{
			"path": {
				Type:        "string",
				Description: "Absolute path of the repository to validate.",
			},
			"compare_to": {
				Type:        "string",
				Description: "Git ref to diff against instead of the working tree state.",
			},
			"include_staged": {
				Type:        "boolean",
				Description: "Include staged changes. Defaults to true.",
			},
			"include_unstaged": {
				Type:        "boolean",
				Description: "Include unstaged changes. Defaults to true.",
			},
		},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Inspect the actual diff of the pending changes, not just the file list",
				"Verify every change serves the stated intent and nothing unrelated slipped in",
				"Check for incomplete edits: dangling references, missing tests, stale docs",
			}
		},
	}
}

// Analyze is the holistic architecture assessment. It always consults the
// expert: a strategic audit is never self-certifying.
func Analyze() *Definition {
	return &Definition{
		Name: "analyze",
		Description: "Holistic code and architecture analysis: structure, scalability, " +
			"maintainability, and strategic improvement opportunities.",
		Category:           registry.CategoryExtendedReasoning,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Analyze,
		ExpertInstruction: "Deliver the strategic assessment: architectural alignment, risks, " +
			"and the highest-leverage improvements, grounded in the findings above.",
		PauseStatus:   "pause_for_analysis",
		CompletionKey: "complete_analysis",
		Expert:        true,
		Fields: map[string]*jsonschema.Schema{
			"analysis_type": {
				Type:        "string",
				Enum:        []any{"architecture", "performance", "security", "quality", "general"},
				Description: "Focus of the analysis. Defaults to general.",
			},
			"output_format": {
				Type:        "string",
				Enum:        []any{"summary", "detailed", "actionable"},
				Description: "Shape of the final report. Defaults to detailed.",
			},
		},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Map the components involved and how they depend on each other",
				"Assess the current design against the stated analysis focus",
				"Record strengths as well as weaknesses; note scalability and coupling concerns",
			}
		},
	}
}

// Refactor finds refactoring opportunities. Its terminal confidence is
// "complete": the analysis covered everything it set out to cover.
func Refactor() *Definition {
	return &Definition{
		Name: "refactor",
		Description: "Refactoring analysis: code smells, decomposition targets, " +
			"modernization opportunities, and organization improvements.",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Refactor,
		ExpertInstruction: "Review the refactoring opportunities above: confirm their value, " +
			"order them by impact over effort, and flag any that risk behavior changes.",
		PauseStatus:    "pause_for_refactoring",
		CompletionKey:  "complete_refactoring",
		Expert:         true,
		SkipConfidence: "complete",
		Fields: map[string]*jsonschema.Schema{
			"refactor_type": {
				Type:        "string",
				Enum:        []any{"codesmells", "decompose", "modernize", "organization"},
				Description: "Kind of refactoring to look for. Defaults to codesmells.",
			},
		},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Read the target code and identify smells, duplication, and oversized units",
				"For each opportunity, note the concrete change and the code it touches",
				"Rate each opportunity's impact and the risk of behavior change",
			}
		},
	}
}

// Secaudit is the OWASP-oriented security audit workflow.
func Secaudit() *Definition {
	return &Definition{
		Name: "secaudit",
		Description: "Security audit: OWASP Top 10 coverage, authentication and " +
			"authorization, input handling, and dependency exposure, with severity-tagged findings.",
		Category:           registry.CategoryExtendedReasoning,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Secaudit,
		ExpertInstruction: "Assess the security posture from the findings above: validate each " +
			"vulnerability, estimate exploitability, and prioritise remediations.",
		PauseStatus:    "pause_for_secaudit",
		CompletionKey:  "complete_secaudit",
		Expert:         true,
		SkipConfidence: "certain",
		Fields: map[string]*jsonschema.Schema{
			"audit_focus": {
				Type:        "string",
				Enum:        []any{"owasp", "compliance", "infrastructure", "dependencies", "comprehensive"},
				Description: "Primary audit lens. Defaults to comprehensive.",
			},
			"threat_level": {
				Type:        "string",
				Enum:        []any{"low", "medium", "high", "critical"},
				Description: "Sensitivity of the system under audit, used to weigh severity.",
			},
		},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Trace how untrusted input enters and flows through the system",
				"Check authentication, authorization, and session handling for gaps",
				"Record each vulnerability with severity, location, and an attack scenario",
			}
		},
	}
}

// Testgen analyses code paths before generating tests for them.
func Testgen() *Definition {
	return &Definition{
		Name: "testgen",
		Description: "Test generation: analyse the target's code paths and edge cases, then " +
			"produce a test suite in the project's established style.",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Testgen,
		ExpertInstruction: "Generate the tests for the paths and edge cases identified above, " +
			"matching the project's existing test conventions.",
		PauseStatus:    "pause_for_test_analysis",
		CompletionKey:  "complete_test_generation",
		Expert:         true,
		SkipConfidence: "certain",
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Read the code under test and enumerate its branches and failure modes",
				"Identify boundary conditions and the edge cases most likely to break",
				"Note the project's test framework and conventions to match",
			}
		},
	}
}

// Docgen documents code file by file. Completion is gated on the agent's own
// counters: it may not finish while files remain undocumented.
func Docgen() *Definition {
	return &Definition{
		Name: "docgen",
		Description: "Documentation generation: walk the target files one by one, adding " +
			"docs with complexity notes and call-flow information.",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Docgen,
		PauseStatus:        "pause_for_docgen",
		CompletionKey:      "complete_docgen",
		FinalStatus:        "documentation_analysis_complete",
		Fields: map[string]*jsonschema.Schema{
			"num_files_documented": {
				Type:        "integer",
				Description: "Count of files fully documented so far.",
			},
			"total_files_to_document": {
				Type:        "integer",
				Description: "Total files discovered that need documentation.",
			},
		},
		RequiredFields: []string{"num_files_documented", "total_files_to_document"},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			if stepNumber == 1 {
				return []string{
					"Discover every file in scope and count them in total_files_to_document",
					"Survey the project's existing documentation style and conventions",
				}
			}
			return []string{
				"Document the next file completely before moving on",
				"Record complexity and call-flow notes where they aid understanding",
				"Increment num_files_documented only when a file is fully done",
			}
		},
		CompletionGate: func(req *StepRequest) (bool, string) {
			if req.TotalFilesToDocument > 0 && req.NumFilesDocumented < req.TotalFilesToDocument {
				return false, fmt.Sprintf(
					"Documentation is not complete: %d of %d files documented. Continue with "+
						"the next undocumented file.",
					req.NumFilesDocumented, req.TotalFilesToDocument)
			}
			return true, ""
		},
	}
}

// Tracer maps execution flow or dependencies for a code target. Ask mode
// returns mode guidance without touching any provider or thread state.
func Tracer() *Definition {
	return &Definition{
		Name: "tracer",
		Description: "Code tracing: map a target's execution flow (precision mode) or its " +
			"structural dependencies (dependencies mode).",
		Category:           registry.CategoryBalanced,
		DefaultTemperature: tools.TemperatureAnalytical,
		SystemPrompt:       prompts.Tracer,
		PauseStatus:        "pause_for_tracing",
		CompletionKey:      "complete_tracer",
		Fields: map[string]*jsonschema.Schema{
			"trace_mode": {
				Type:        "string",
				Enum:        []any{"precision", "dependencies", "ask"},
				Description: "precision traces execution flow; dependencies maps structural relationships; ask requests guidance on which to use.",
			},
			"target_description": {
				Type:        "string",
				Description: "What to trace and why: the function, class, or module of interest.",
			},
		},
		RequiredFields: []string{"trace_mode", "target_description"},
		RequiredActions: func(stepNumber, totalSteps int, confidence string) []string {
			return []string{
				"Locate the trace target and read its implementation",
				"Follow each call edge or dependency one hop further than the last step",
				"Record the discovered flow with file and line references",
			}
		},
		PreStep: func(req *StepRequest) *tools.Envelope {
			if req.TraceMode != "ask" {
				return nil
			}
			return &tools.Envelope{
				Status: "mode_selection_required",
				Content: "Choose a trace mode before starting: use precision to follow " +
					"execution flow (call chains, branching, side effects of a specific " +
					"function or method) or dependencies to map structural relationships " +
					"(what depends on the target and what it depends on). Call tracer " +
					"again with trace_mode set accordingly.",
				ContentType: tools.ContentText,
				Metadata:    map[string]any{"tool_name": "tracer"},
			}
		},
	}
}
