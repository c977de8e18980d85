package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// iamAPI is the slice of the IAM client this service uses.
type iamAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
	GetOpenIDConnectProvider(ctx context.Context, params *iam.GetOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.GetOpenIDConnectProviderOutput, error)
}

// IAMService wraps the direct IAM calls made outside terraform: the role
// existence probe and role teardown during uninstall.
type IAMService struct {
	client iamAPI
}

// NewIAMService creates an IAMService from an aws.Config.
func NewIAMService(cfg aws.Config) *IAMService {
	return &IAMService{client: iam.NewFromConfig(cfg)}
}

// NewIAMServiceWithClient creates an IAMService with a custom client. This
// is useful for testing.
func NewIAMServiceWithClient(client iamAPI) *IAMService {
	return &IAMService{client: client}
}

// RoleExists probes the role with GetRole.
func (s *IAMService) RoleExists(ctx context.Context, roleName string) (bool, error) {
	_, err := s.client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err == nil {
		return true, nil
	}
	if isErrorCode(err, "NoSuchEntity") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check role %s: %w", roleName, err)
}

// OIDCProviderExists probes the OIDC provider with the given ARN. The
// provider is account-wide and may predate this tool, so a found provider
// is imported rather than recreated.
func (s *IAMService) OIDCProviderExists(ctx context.Context, providerARN string) (bool, error) {
	_, err := s.client.GetOpenIDConnectProvider(ctx, &iam.GetOpenIDConnectProviderInput{
		OpenIDConnectProviderArn: aws.String(providerARN),
	})
	if err == nil {
		return true, nil
	}
	if isErrorCode(err, "NoSuchEntity") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check OIDC provider %s: %w", providerARN, err)
}

// RoleARN builds the role ARN for an account.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// DeleteRole removes a role, stripping its inline and attached policies
// first since IAM refuses to delete a role that still has any. A missing
// role is not an error.
func (s *IAMService) DeleteRole(ctx context.Context, roleName string) error {
	inline, err := s.client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil {
		if isErrorCode(err, "NoSuchEntity") {
			return nil
		}
		return fmt.Errorf("failed to list inline policies for %s: %w", roleName, err)
	}
	for _, policyName := range inline.PolicyNames {
		_, err := s.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		})
		if err != nil && !isErrorCode(err, "NoSuchEntity") {
			return fmt.Errorf("failed to delete inline policy %s from %s: %w", policyName, roleName, err)
		}
	}

	attached, err := s.client.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(roleName)})
	if err != nil && !isErrorCode(err, "NoSuchEntity") {
		return fmt.Errorf("failed to list attached policies for %s: %w", roleName, err)
	}
	if attached != nil {
		for _, policy := range attached.AttachedPolicies {
			_, err := s.client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
				RoleName:  aws.String(roleName),
				PolicyArn: policy.PolicyArn,
			})
			if err != nil && !isErrorCode(err, "NoSuchEntity") {
				return fmt.Errorf("failed to detach policy from %s: %w", roleName, err)
			}
		}
	}

	_, err = s.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)})
	if err != nil && !isErrorCode(err, "NoSuchEntity") {
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}
	return nil
}
