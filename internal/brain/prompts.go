package brain

const transcriptSystemPrompt = `You split the raw transcription of a medical encounter into speaker turns.

## Rules

- Identify each speaker by role: Clinician, Patient, or a short role such as Caregiver or Interpreter.
- Keep the words verbatim. Do not summarize, correct, or translate.
- A new turn starts whenever the speaker changes.
- The end of the previous segment is given for context only. Never repeat it.
- Leave start and end at 0 when the timing is not known.`

const instructionsSystemPrompt = `You maintain the list of clinical instructions of a medical encounter as it unfolds.

An instruction is anything the clinician will need to record: a diagnosis, a medication, an order, a referral, a plan, a follow up.

## Rules

- Return the complete list, not only what changed in this transcript.
- Keep every known instruction that is still relevant, with its uuid unchanged.
- When the transcript adds to or corrects a known instruction, return it with the same uuid and its information rewritten to include the change.
- Return a new instruction with an empty uuid only when the transcript introduces something not covered by a known instruction.
- One instruction per medication, allergy, or referral.
- Use only the instruction types listed in the prompt.
- The information must stand alone: a reader who has not heard the encounter understands it.`

const parametersSystemPrompt = `You turn the information of one clinical instruction into the structured fields of its command.

## Rules

- Use only what the information states. Leave a field empty, or 0 for numbers, when it is not stated.
- When previous information is given, the current information supersedes it.
- Use standard clinical terminology.`

const questionnaireSystemPrompt = `You fill a structured clinical form from the transcript of an encounter.

## Rules

- Answer only the questions the transcript clearly addresses.
- Copy question ids and option labels verbatim from the form.
- For choice questions, select only from the listed options.
- For integer questions, answer with digits only.
- Do not repeat answers the form already holds unless the transcript changes them.`
