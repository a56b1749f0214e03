package core

import "testing"

func TestSessionTypeValid(t *testing.T) {
	for _, typ := range AllSessionTypes {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if SessionType("aws_magic").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestSessionTypeProvider(t *testing.T) {
	if TypeAzure.Provider() != ProviderAzure {
		t.Error("azure type should map to the azure provider")
	}
	for _, typ := range []SessionType{TypeAWSIAMUser, TypeAWSIAMRoleFederated, TypeAWSIAMRoleChained, TypeAWSSSORole} {
		if typ.Provider() != ProviderAWS {
			t.Errorf("%s should map to aws", typ)
		}
	}
}

func TestSessionTypeChainable(t *testing.T) {
	chainable := map[SessionType]bool{
		TypeAWSIAMUser:          true,
		TypeAWSIAMRoleFederated: true,
		TypeAWSSSORole:          true,
		TypeAWSIAMRoleChained:   true,
		TypeAzure:               false,
	}
	for typ, want := range chainable {
		if typ.Chainable() != want {
			t.Errorf("%s: Chainable() = %v, want %v", typ, typ.Chainable(), want)
		}
	}
}

func TestSessionTypeUsesProfile(t *testing.T) {
	if TypeAzure.UsesProfile() {
		t.Error("azure sessions do not use named profiles")
	}
	if !TypeAWSIAMUser.UsesProfile() {
		t.Error("aws sessions use named profiles")
	}
}

func TestWorkspaceIsPinned(t *testing.T) {
	ws := Workspace{Pinned: []string{"s1", "s2"}}
	if !ws.IsPinned("s1") || ws.IsPinned("s3") {
		t.Error("pin lookup is wrong")
	}
}
