package policy

import (
	"encoding/json"
	"fmt"
)

const (
	// GitHubOIDCProviderURL is GitHub's token issuer host.
	GitHubOIDCProviderURL = "token.actions.githubusercontent.com"
	// GitHubOIDCAudience is the audience GitHub Actions presents to STS.
	GitHubOIDCAudience = "sts.amazonaws.com"
)

// OIDCProviderARN builds the ARN of the GitHub OIDC provider in an account.
func OIDCProviderARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, GitHubOIDCProviderURL)
}

// BuildTrustPolicy renders the assume-role policy allowing GitHub Actions
// runs of org/repo to assume the role via OIDC.
func BuildTrustPolicy(providerARN, org, repo string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect": "Allow",
				"Principal": map[string]interface{}{
					"Federated": providerARN,
				},
				"Action": "sts:AssumeRoleWithWebIdentity",
				"Condition": map[string]interface{}{
					"StringEquals": map[string]interface{}{
						GitHubOIDCProviderURL + ":aud": GitHubOIDCAudience,
					},
					"StringLike": map[string]interface{}{
						GitHubOIDCProviderURL + ":sub": fmt.Sprintf("repo:%s/%s:*", org, repo),
					},
				},
			},
		},
	}

	policyJSON, _ := json.Marshal(policy)
	return string(policyJSON)
}

// BuildRolePolicy renders the role's access policy: a broad allow so
// pipelines can manage arbitrary application infrastructure, an explicit
// deny override on identity and organization mutation (reads stay allowed
// through the broad statement), and narrowly scoped statements for the
// state bucket and lock table.
func BuildRolePolicy(region, accountID, bucket, lockTable string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Sid":      "DeployAnything",
				"Effect":   "Allow",
				"Action":   "*",
				"Resource": "*",
			},
			{
				"Sid":    "DenyIdentityMutation",
				"Effect": "Deny",
				"Action": []string{
					"iam:Add*",
					"iam:Attach*",
					"iam:Create*",
					"iam:Deactivate*",
					"iam:Delete*",
					"iam:Detach*",
					"iam:Put*",
					"iam:Remove*",
					"iam:Set*",
					"iam:Tag*",
					"iam:Untag*",
					"iam:Update*",
					"organizations:Accept*",
					"organizations:Attach*",
					"organizations:Create*",
					"organizations:Delete*",
					"organizations:Detach*",
					"organizations:Invite*",
					"organizations:Leave*",
					"organizations:Move*",
					"organizations:Tag*",
					"organizations:Untag*",
					"organizations:Update*",
				},
				"Resource": "*",
			},
			{
				"Sid":      "StateBucketList",
				"Effect":   "Allow",
				"Action":   "s3:ListBucket",
				"Resource": fmt.Sprintf("arn:aws:s3:::%s", bucket),
			},
			{
				"Sid":    "StateBucketObjects",
				"Effect": "Allow",
				"Action": []string{
					"s3:GetObject",
					"s3:PutObject",
					"s3:DeleteObject",
				},
				"Resource": fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
			{
				"Sid":    "LockTableAccess",
				"Effect": "Allow",
				"Action": []string{
					"dynamodb:GetItem",
					"dynamodb:PutItem",
					"dynamodb:DeleteItem",
				},
				"Resource": fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", region, accountID, lockTable),
			},
		},
	}

	policyJSON, _ := json.Marshal(policy)
	return string(policyJSON)
}
