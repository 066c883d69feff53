package policy

// DefaultRolePolicyFile is the file name `planwing init` writes the sample policy to.
const DefaultRolePolicyFile = "roles.rego"

// DefaultRolePolicy restricts closing weeks and sprints to mentors and
// admins and warns when a week is closed before its last day.
const DefaultRolePolicy = `package planwing.policy

import rego.v1

gated_actions := {"close_week", "close_sprint"}

privileged_roles := {"MENTOR", "ADMIN"}

deny contains msg if {
	input.action in gated_actions
	count({r | some r in input.roles; r in privileged_roles}) == 0
	msg := sprintf("%s requires one of the roles %v", [input.action, sort(privileged_roles)])
}

warn contains msg if {
	input.action == "close_week"
	planwing.days_until(input.week_end) > 0
	msg := sprintf("week ends on %s, closing it early", [input.week_end])
}
`

// DefaultRolePolicyTestFile holds the Rego tests for the sample policy.
const DefaultRolePolicyTestFile = "roles_test.rego"

// DefaultRolePolicyTest exercises DefaultRolePolicy with `planwing policy test`.
const DefaultRolePolicyTest = `package planwing.policy_test

import rego.v1

import data.planwing.policy

test_mentor_may_close_week if {
	count(policy.deny) == 0 with input as {"action": "close_week", "roles": ["MENTOR"]}
}

test_intern_may_not_close_sprint if {
	count(policy.deny) == 1 with input as {"action": "close_sprint", "roles": ["INTERN"]}
}
`
