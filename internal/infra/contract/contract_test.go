package contract

import "testing"

func TestABIsExposeExpectedMethods(t *testing.T) {
	for _, name := range []string{
		"joinCommune", "createChore", "removeChore", "markChoreComplete",
		"setChoreAssignee", "createTask", "markTaskDone", "disputeTask",
		"createExpense", "markExpensePaid", "disputeExpense", "removeMember",
		"getUserCommune", "getCommuneMembers", "getChoreSchedules",
		"getChoreInstances", "getTasks", "getExpenses",
	} {
		if _, ok := Commune.Methods[name]; !ok {
			t.Errorf("commune abi missing %s", name)
		}
	}
	if _, ok := ERC20.Methods["approve"]; !ok {
		t.Error("erc20 abi missing approve")
	}
}
