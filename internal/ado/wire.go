package ado

import "time"

// Wire shapes of the Azure DevOps REST API. Only fields the adapters read are declared.

type listResponse[T any] struct {
	Count             int    `json:"count"`
	Value             []T    `json:"value"`
	ContinuationToken string `json:"continuationToken"`
}

type wireProject struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`
}

type wireRepo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DefaultBranch string `json:"defaultBranch"`
	Size          *int64 `json:"size"`
	IsDisabled    bool   `json:"isDisabled"`
}

type wireItem struct {
	Path          string `json:"path"`
	IsFolder      bool   `json:"isFolder"`
	GitObjectType string `json:"gitObjectType"`
	Size          int64  `json:"size"`
}

type wireCommit struct {
	CommitID string `json:"commitId"`
	Author   struct {
		Name  string    `json:"name"`
		Email string    `json:"email"`
		Date  time.Time `json:"date"`
	} `json:"author"`
}

type wireRef struct {
	Name     string `json:"name"`
	ObjectID string `json:"objectId"`
}

type wireChangeset struct {
	ChangesetID int `json:"changesetId"`
	Author      struct {
		DisplayName string `json:"displayName"`
		UniqueName  string `json:"uniqueName"`
	} `json:"author"`
	CreatedDate time.Time `json:"createdDate"`
}

type wireFeed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireWiki struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireWorkItem struct {
	ID     int `json:"id"`
	Fields struct {
		ChangedDate time.Time `json:"System.ChangedDate"`
		ChangedBy   any       `json:"System.ChangedBy"`
	} `json:"fields"`
}

type wireWIQL struct {
	Query string `json:"query"`
}

type wireWIQLResult struct {
	WorkItems []struct {
		ID int `json:"id"`
	} `json:"workItems"`
}

type wireAttachment struct {
	Name       string `json:"name"`
	Attributes struct {
		ResourceSize int64 `json:"resourceSize"`
	} `json:"attributes"`
}

// entitlementsResponse accepts both the "members" and "value" list fields.
type entitlementsResponse struct {
	Members    []wireEntitlement `json:"members"`
	Value      []wireEntitlement `json:"value"`
	TotalCount int               `json:"totalCount"`
}

type wireEntitlement struct {
	ID   string `json:"id"`
	User struct {
		Descriptor    string `json:"descriptor"`
		DisplayName   string `json:"displayName"`
		PrincipalName string `json:"principalName"`
		MailAddress   string `json:"mailAddress"`
		Domain        string `json:"domain"`
	} `json:"user"`
	AccessLevel struct {
		AccountLicenseType string `json:"accountLicenseType"`
		LicenseDisplayName string `json:"licenseDisplayName"`
		Status             string `json:"status"`
	} `json:"accessLevel"`
}

type wireGraphSubject struct {
	Descriptor    string `json:"descriptor"`
	DisplayName   string `json:"displayName"`
	PrincipalName string `json:"principalName"`
	MailAddress   string `json:"mailAddress"`
	Domain        string `json:"domain"`
	OriginID      string `json:"originId"`
	SubjectKind   string `json:"subjectKind"`
}

type wireDescriptor struct {
	Value string `json:"value"`
}

type wireMembership struct {
	MemberDescriptor    string `json:"memberDescriptor"`
	ContainerDescriptor string `json:"containerDescriptor"`
}

type wireTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireTeamMember struct {
	Identity struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		UniqueName  string `json:"uniqueName"`
		Descriptor  string `json:"descriptor"`
	} `json:"identity"`
	IsTeamAdmin bool `json:"isTeamAdmin"`
}
